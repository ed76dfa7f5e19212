package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/blastxplorer/blastxplorer/internal/repository"
)

var _ repository.LeaseLock = (*redisLock)(nil)

const lockKeyPrefix = "blastxplorer:lock:"

type redisLock struct {
	client *goredis.Client
}

// NewLeaseLock creates a Redis-backed lease lock using SET NX with a TTL.
func NewLeaseLock(client *goredis.Client) repository.LeaseLock {
	return &redisLock{client: client}
}

// Acquire atomically takes the lock unless another holder owns it. The TTL
// guarantees a crashed holder cannot block future cycles forever.
func (r *redisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock immediately instead of waiting out the lease.
func (r *redisLock) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, lockKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}
