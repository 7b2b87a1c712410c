package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jackyzaz/motegao/internal/bootstrap"
	"github.com/Jackyzaz/motegao/internal/config"
	amqpdelivery "github.com/Jackyzaz/motegao/internal/delivery/amqp"
	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/executor"
	"github.com/Jackyzaz/motegao/internal/pool"
	redisrepo "github.com/Jackyzaz/motegao/internal/repository/redis"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting motegao recon worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Store.Backend == config.BackendMemory {
		logger.Fatal("The worker needs a shared job store; set STORE_BACKEND to postgres or redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open job store", zap.Error(err))
	}
	defer stores.Close()

	registry := executor.NewRegistry()
	cancelBus := redisrepo.NewCancelBus(stores.Redis, logger)

	// Initialize use case
	executeUC := usecase.NewExecuteJobUsecase(stores.Jobs, stores.Idempotency, registry, cfg.Tools(), logger)

	// Create buffered job channel
	jobsChan := make(chan *domain.JobMessage, cfg.Worker.PoolSize)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, executeUC, logger)
	workerPool.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Start(gctx)
	})

	g.Go(func() error {
		return cancelBus.Listen(gctx, registry.Terminate)
	})

	// Prometheus metrics server
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker component failed", zap.Error(err))
	}

	logger.Info("Shutting down worker...")
	stop()

	// Wait for workers to record the final state of in-flight jobs
	workerPool.Stop()

	logger.Info("Worker stopped", zap.Int("jobs_still_registered", registry.Len()))
}
