package executor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock serializes execution of the same opportunity ID across more
// than one Coordinator instance (e.g. one orchestrator process per chain
// sharing a Redis backend), extending the in-process singleflight.Group
// to a multi-instance deployment. A Coordinator with no DistLock
// configured relies on singleflight alone, which is sufficient for a
// single-instance deployment.
type DistLock interface {
	// TryLock attempts to acquire the lock for key for ttl and reports
	// whether it was acquired. A held lock is released by Unlock or left
	// to expire after ttl, whichever comes first.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisDistLock implements DistLock with Redis SETNX, using *redis.Client
// as a thin, instrumented collaborator rather than a source of truth
// (see internal/pricecache.Mirror).
type RedisDistLock struct {
	client *redis.Client
	prefix string
}

// NewRedisDistLock builds a RedisDistLock keying every lock under prefix.
func NewRedisDistLock(client *redis.Client, prefix string) *RedisDistLock {
	return &RedisDistLock{client: client, prefix: prefix}
}

func (l *RedisDistLock) key(id string) string {
	return l.prefix + ":" + id
}

// TryLock acquires the lock with Redis SET NX, equivalent to a
// cluster-wide compare-and-swap.
func (l *RedisDistLock) TryLock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(id), 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Unlock releases the lock early, e.g. once execution reaches a terminal
// state well before ttl would otherwise expire it.
func (l *RedisDistLock) Unlock(ctx context.Context, id string) error {
	return l.client.Del(ctx, l.key(id)).Err()
}
