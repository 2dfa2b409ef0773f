// Package cache implements Redis-backed adapters.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSyncLock implements out.SyncLocker with SET NX. The TTL covers the
// crash case: a process that dies mid-sync leaves a lock that expires on its
// own instead of wedging the connection forever.
type RedisSyncLock struct {
	client *redis.Client
}

// NewRedisSyncLock creates a Redis-backed sync lock.
func NewRedisSyncLock(client *redis.Client) *RedisSyncLock {
	return &RedisSyncLock{client: client}
}

func lockKey(connectionID int64) string {
	return fmt.Sprintf("sync:lock:%d", connectionID)
}

// Acquire takes the lock for a connection. Returns false if another sync
// already holds it.
func (l *RedisSyncLock) Acquire(ctx context.Context, connectionID int64, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(connectionID), "1", ttl).Result()
}

// Release frees the lock.
func (l *RedisSyncLock) Release(ctx context.Context, connectionID int64) error {
	return l.client.Del(ctx, lockKey(connectionID)).Err()
}
