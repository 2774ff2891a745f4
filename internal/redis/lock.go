package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock the caller does not own.
var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the lock only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func riderLockKey(riderID string) string {
	return fmt.Sprintf("lock:rider:%s", riderID)
}

// AcquireRiderLock attempts to acquire the lock for the given rider.
// On success it returns the owner token needed to release it.
func (s *LockStore) AcquireRiderLock(ctx context.Context, riderID string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, riderLockKey(riderID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseRiderLock releases the rider's lock if token still owns it.
func (s *LockStore) ReleaseRiderLock(ctx context.Context, riderID, token string) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{riderLockKey(riderID)}, token).Int()
	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrLockNotHeld
	}

	return nil
}
