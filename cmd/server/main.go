package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/bootstrap"
	"github.com/Jackyzaz/motegao/internal/config"
	handler "github.com/Jackyzaz/motegao/internal/delivery/http"
	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/executor"
	"github.com/Jackyzaz/motegao/internal/pool"
	"github.com/Jackyzaz/motegao/internal/publisher"
	"github.com/Jackyzaz/motegao/internal/repository"
	redisrepo "github.com/Jackyzaz/motegao/internal/repository/redis"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting motegao API server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open job store", zap.Error(err))
	}
	defer stores.Close()

	var (
		pub        publisher.Publisher
		signaler   repository.CancelSignaler
		workerPool *pool.WorkerPool
	)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.Store.Backend == config.BackendMemory {
		// Single-binary mode: jobs run in this process.
		jobs := make(chan *domain.JobMessage, cfg.Worker.PoolSize*2)
		registry := executor.NewRegistry()
		executeUC := usecase.NewExecuteJobUsecase(stores.Jobs, stores.Idempotency, registry, cfg.Tools(), logger)

		workerPool = pool.NewWorkerPool(cfg.Worker.PoolSize, jobs, executeUC, logger)
		workerPool.Start(workerCtx)

		pub = publisher.NewChannelPublisher(jobs)
		signaler = registry
		logger.Info("Running embedded worker pool", zap.Int("pool_size", cfg.Worker.PoolSize))
	} else {
		// Initialize RabbitMQ publisher
		pub, err = publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		logger.Info("Connected to RabbitMQ")
		signaler = redisrepo.NewCancelBus(stores.Redis, logger)
	}
	defer pub.Close()

	// Initialize use cases
	submitUC := usecase.NewSubmitJobUsecase(stores.Jobs, pub, logger)
	getJobUC := usecase.NewGetJobUsecase(stores.Jobs, logger)
	cancelUC := usecase.NewCancelJobUsecase(stores.Jobs, signaler, logger)

	// Initialize router
	router := handler.NewRouter(ctx, handler.RouterDeps{
		SubmitUC:        submitUC,
		GetJobUC:        getJobUC,
		CancelUC:        cancelUC,
		Tools:           cfg.Tools(),
		Health:          stores.Health,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	// Create HTTP server. No write timeout: status streams stay open until
	// their job finishes.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if workerPool != nil {
		stopWorkers()
		workerPool.Stop()
	}

	logger.Info("API server stopped")
}
