package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "dedupe:"

// DedupeStore remembers event keys that were already processed.
type DedupeStore struct {
	client *redis.Client
}

// NewDedupeStore creates a new DedupeStore.
func NewDedupeStore(client *redis.Client) *DedupeStore {
	return &DedupeStore{client: client}
}

// MarkSeen records key and reports whether it was new.
func (s *DedupeStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, dedupeKeyPrefix+key, "1", ttl).Result()
}

// Forget removes key so a later delivery of the same event is processed again.
func (s *DedupeStore) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, dedupeKeyPrefix+key).Err()
}
