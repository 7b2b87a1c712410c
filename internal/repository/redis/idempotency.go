package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Jackyzaz/motegao/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "motegao:lock:"
	lockTTL       = 10 * time.Minute
)

type redisIdempotency struct {
	client goredis.UniversalClient
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store. The
// queue delivers at least once, so a redelivered job must not start a
// second tool process.
func NewRedisIdempotencyStore(client goredis.UniversalClient) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses Redis SETNX to atomically acquire a processing lock.
// Recon jobs have no timeout, so the lock does not expire while held.
func (r *redisIdempotency) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + jobID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock sets a TTL on the lock key so late redeliveries are still
// dropped for a while after the job finished.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	if err := r.client.Expire(ctx, key, lockTTL).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}
