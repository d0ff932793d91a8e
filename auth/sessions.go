package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore tracks live session ids in Redis so tokens can be revoked
// before they expire. A nil client disables tracking: every signed, unexpired
// token is then accepted.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(tokenID string) string {
	return "session:" + tokenID
}

func (s *SessionStore) Save(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Set(ctx, sessionKey(tokenID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Active(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || s.client == nil {
		return true, nil
	}
	err := s.client.Get(ctx, sessionKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	return true, nil
}

func (s *SessionStore) Revoke(ctx context.Context, tokenID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, sessionKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
