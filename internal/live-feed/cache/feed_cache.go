package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyStandings(raceID string) string { return "race:standings:" + raceID }

// GetStandings lê a classificação corrente gravada pelo telemetry-processor
func (c *Cache) GetStandings(ctx context.Context, raceID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyStandings(raceID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetStandings(ctx context.Context, raceID string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyStandings(raceID), b, ttl).Err()
}
