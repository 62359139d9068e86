package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when the lock cannot be acquired before the
// configured wait elapses.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// RedisLocker is a Locker backed by redis SET NX, for deployments where more
// than one node mutates the same entities.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	maxWait    time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, maxWait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		maxWait:    maxWait,
		retryDelay: 50 * time.Millisecond,
	}
}

func (r *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := "lock:" + key
	token := uuid.NewString()

	deadline := time.Now().Add(r.maxWait)
	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	defer r.unlock(ctx, lockKey, token)
	return fn(ctx)
}

// unlock releases the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisLocker) unlock(ctx context.Context, lockKey, token string) {
	unlockScript.Run(ctx, r.client, []string{lockKey}, token)
}
