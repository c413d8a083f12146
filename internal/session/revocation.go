package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "session:revoked:"

// RevocationStore tracks session credentials invalidated before their
// natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type redisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore returns a Redis-backed implementation. Entries
// expire with the credential they shadow, so the set stays bounded.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{client: client}
}

func (s *redisRevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revocationKeyPrefix+sessionID, "1", ttl).Err()
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type noopRevocationStore struct{}

// NewNoopRevocationStore returns a store that revokes nothing, used when
// Redis is not configured.
func NewNoopRevocationStore() RevocationStore {
	return noopRevocationStore{}
}

func (noopRevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	return nil
}

func (noopRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	return false, nil
}
