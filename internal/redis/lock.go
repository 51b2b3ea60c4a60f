package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const gridRebuildLockKey = "lock:grid:rebuild"

// releaseScript deletes the lock only when the caller still owns it.
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

// AcquireGridLock attempts to take the grid rebuild lock.
// Returns the owner token and true if the lock was acquired, false if already held.
func (s *LockStore) AcquireGridLock(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, gridRebuildLockKey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}

	return token, ok, nil
}

// ReleaseGridLock releases the grid rebuild lock if token still owns it.
func (s *LockStore) ReleaseGridLock(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, s.client, []string{gridRebuildLockKey}, token).Err()
}
