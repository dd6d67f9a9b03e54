// Package app assembles the question answering service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"policy-qa-service/internal/ai"
	"policy-qa-service/internal/config"
	"policy-qa-service/internal/rag"
	"policy-qa-service/internal/telemetry"
	"policy-qa-service/middleware"
	"policy-qa-service/routes"
	"policy-qa-service/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// App owns the long-lived dependencies shared by every request.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Pipeline *rag.Pipeline
	Resolver *services.DocumentResolver

	providers *ai.Providers
	redis     *redis.Client
}

// New connects the model providers and optional Redis and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	metrics, err := telemetry.InitMetrics(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	providers, err := ai.NewProviders(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model providers: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			if cfg.IndexCacheBackend == config.CacheRedis {
				providers.Close()
				return nil, err
			}
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
			rdb = nil
		}
	}

	a, err := build(cfg, logger, metrics, providers.Encoder, providers.Generator, rdb)
	if err != nil {
		providers.Close()
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}
	a.providers = providers
	return a, nil
}

func build(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics, enc rag.Encoder, gen rag.Generator, rdb *redis.Client) (*App, error) {
	var cache rag.IndexCache
	switch cfg.IndexCacheBackend {
	case config.CacheMemory:
		cache = rag.NewMemoryIndexCache(cfg.IndexCacheSize)
	case config.CacheRedis:
		if rdb == nil {
			return nil, errors.New("index cache backend redis needs REDIS_URL")
		}
		cache = services.NewRedisIndexCache(rdb, cfg.IndexCacheTTL, logger)
	}

	pipeline, err := rag.NewPipeline(rag.NewPDFLoader(logger), enc, gen, rag.Options{
		MaxChunkLength: cfg.MaxChunkSize,
		OverlapLength:  cfg.ChunkOverlap,
		TopK:           cfg.RetrievalTopK,
		PromptTemplate: cfg.PromptTemplate,
		Cache:          cache,
		Logger:         logger,
		Observer:       metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	logger.Info("Pipeline ready",
		"embeddings_model", enc.Model(),
		"generation_model", gen.Model(),
		"chunk_size", cfg.MaxChunkSize,
		"chunk_overlap", cfg.ChunkOverlap,
		"top_k", cfg.RetrievalTopK,
		"index_cache", cfg.IndexCacheBackend)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Pipeline: pipeline,
		Resolver: services.NewDocumentResolver(cfg.DocumentsDir, cfg.MaxDocumentSize, cfg.DownloadTimeout, logger),
		redis:    rdb,
	}, nil
}

// Router returns the HTTP handler with the full middleware chain.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(a.Config.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(a.Metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(a.Config.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(a.Config.MaxRequestBodyMB << 20))

	// an untyped nil keeps the limiter in pass-through mode
	var limiter redis.Cmdable
	if a.redis != nil {
		limiter = a.redis
	}
	router.Use(middleware.RateLimitMiddleware(limiter, a.Config.RateLimitReqs, a.Config.RateLimitWindow, a.Logger))

	routes.SetupHealthRoutes(router)
	routes.SetupHackRxRoutes(router, a.Resolver, a.Pipeline, a.Config.APIKey, a.Logger)
	return router
}

// Close releases the provider and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.providers != nil {
		errs = append(errs, a.providers.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
