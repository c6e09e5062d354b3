package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// RedisCache guarda a classificação corrente de cada corrida no Redis.
// O TTL derruba corridas encerradas sem precisar de limpeza ativa
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis da classificação corrente de uma corrida
func key(raceID string) string { return "race:standings:" + raceID }

// SetCurrent armazena o último tick de telemetria de uma corrida
func (r *RedisCache) SetCurrent(ctx context.Context, e events.RaceTelemetry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.RaceID), b, r.TTL).Err()
}

// GetCurrent devolve o último tick conhecido; (nil, nil) sem corrida no cache
func (r *RedisCache) GetCurrent(ctx context.Context, raceID string) (*events.RaceTelemetry, error) {
	b, err := r.Client.Get(ctx, key(raceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t events.RaceTelemetry
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
