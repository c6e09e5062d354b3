package pinkslip

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL limita a vida de um desafio aberto; a sessão some do Redis
// quando vence, o que cancela o desafio por abandono.
const SessionTTL = 5 * time.Minute

// Store guarda sessões de confirmação no Redis com TTL.
type Store struct {
	Client *redis.Client
}

func NewStore(c *redis.Client) *Store { return &Store{Client: c} }

func key(challengeID string) string { return "pinkslip:challenge:" + challengeID }

// Save grava a sessão renovando o TTL
func (s *Store) Save(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key(sess.ChallengeID), b, SessionTTL).Err()
}

// Get carrega a sessão; (nil, nil) quando não existe ou já venceu
func (s *Store) Get(ctx context.Context, challengeID string) (*Session, error) {
	b, err := s.Client.Get(ctx, key(challengeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete remove a sessão encerrada
func (s *Store) Delete(ctx context.Context, challengeID string) error {
	return s.Client.Del(ctx, key(challengeID)).Err()
}
