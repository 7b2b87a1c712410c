// Package bootstrap opens the storage backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/config"
	"github.com/Jackyzaz/motegao/internal/repository"
	"github.com/Jackyzaz/motegao/internal/repository/memory"
	"github.com/Jackyzaz/motegao/internal/repository/postgres"
	redisrepo "github.com/Jackyzaz/motegao/internal/repository/redis"
)

// Stores bundles the backends a binary needs. Redis is nil for the memory
// backend.
type Stores struct {
	Jobs        repository.JobStore
	Idempotency repository.IdempotencyStore
	Redis       *goredis.Client
	Health      map[string]repository.Pinger

	closers []func()
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type redisPinger struct{ client *goredis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

// OpenStores connects to the configured job store. The postgres and redis
// backends also get Redis-backed idempotency locks.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{Health: map[string]repository.Pinger{}}

	if cfg.Store.Backend == config.BackendMemory {
		jobs := memory.NewJobStore()
		s.Jobs = jobs
		s.Idempotency = memory.NewIdempotencyStore()
		s.Health["store"] = jobs
		logger.Info("Using in-memory job store")
		return s, nil
	}

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}
	rdb := goredis.NewClient(redisOpts)
	s.closers = append(s.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	logger.Info("Connected to Redis")
	s.Redis = rdb
	s.Idempotency = redisrepo.NewRedisIdempotencyStore(rdb)
	s.Health["redis"] = redisPinger{client: rdb}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		jobs := redisrepo.NewJobStore(rdb, cfg.Store.TerminalTTL)
		s.Jobs = jobs
		s.Health["store"] = jobs
		logger.Info("Using Redis job store", zap.Duration("terminal_ttl", cfg.Store.TerminalTTL))

	case config.BackendPostgres:
		// Connect to PostgreSQL
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		s.closers = append(s.closers, dbPool.Close)
		if err := dbPool.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping PostgreSQL: %w", err)
		}
		logger.Info("Connected to PostgreSQL")

		if err := postgres.Migrate(ctx, dbPool); err != nil {
			s.Close()
			return nil, err
		}
		jobs := postgres.NewPostgresJobStore(dbPool)
		s.Jobs = jobs
		s.Health["store"] = jobs

	default:
		s.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return s, nil
}
