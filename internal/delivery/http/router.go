package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/delivery/http/middleware"
	"github.com/Jackyzaz/motegao/internal/executor"
	"github.com/Jackyzaz/motegao/internal/repository"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

// RouterDeps carries everything the HTTP layer needs.
type RouterDeps struct {
	SubmitUC *usecase.SubmitJobUsecase
	GetJobUC *usecase.GetJobUsecase
	CancelUC *usecase.CancelJobUsecase
	Tools    executor.Tools
	Health   map[string]repository.Pinger
	Logger   *zap.Logger

	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and
// middleware. ctx bounds the lifetime of middleware background goroutines.
func NewRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	router := gin.New()
	logger := deps.Logger

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.Health, logger)
		v1.GET("/health", healthHandler.Health)

		toolsHandler := NewToolsHandler(deps.Tools)
		v1.GET("/tools", toolsHandler.List)

		cmdHandler := NewCommandHandler(deps.SubmitUC, deps.GetJobUC, deps.CancelUC, logger)
		wsHandler := NewWebSocketHandler(deps.GetJobUC, logger)

		commands := v1.Group("/commands")
		commands.GET("/:id", cmdHandler.GetByID)
		commands.GET("/:id/stream", wsHandler.Stream)

		// Mutating endpoints are rate limited and body capped.
		limited := commands.Group("",
			middleware.RateLimiter(ctx, deps.RateLimitPerMin),
			middleware.BodySizeLimit(deps.MaxBodyBytes),
		)
		limited.POST("/ping", cmdHandler.Ping)
		limited.POST("/nmap", cmdHandler.PortScan)
		limited.POST("/subdomain_enum", cmdHandler.SubdomainEnum)
		limited.POST("/subdomain_dns_enum", cmdHandler.SubdomainEnum)
		limited.POST("/path_enum", cmdHandler.PathEnum)
		limited.POST("/:id/cancel", cmdHandler.Cancel)
	}

	return router
}
