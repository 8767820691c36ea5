// Package lock provides the distributed SetNX guard used by the Ingestion
// Pipeline's per-(user,source) Busy check and by the Nudger to keep its
// ticks from overlapping, grounded on the loyverse
// sync.Manager.runSync lock (redis SetNX with a TTL).
package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker acquires and releases short-lived named locks.
type Locker interface {
	// TryAcquire returns true if the lock was acquired, false if another
	// holder already has it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLocker implements Locker with SETNX + EX, matching
// sync.Manager.runSync in the loyverse integration.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
