package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"knowledge-assistant/internal/api"
	"knowledge-assistant/internal/api/handlers"
	"knowledge-assistant/internal/repository"
	"knowledge-assistant/internal/service"
	"knowledge-assistant/pkg/config"
	"knowledge-assistant/pkg/logger"
	"knowledge-assistant/pkg/postgres"
	"knowledge-assistant/pkg/redis"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting knowledge assistant service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db, appLogger)
	docRepo := repository.NewDocumentRepository(db, appLogger)
	chunkRepo := repository.NewChunkRepository(db, appLogger)
	requestRepo := repository.NewRequestRepository(db, appLogger)
	feedbackRepo := repository.NewFeedbackRepository(db, appLogger)

	// Cache backend: Redis when configured, in-process otherwise
	var kv service.KV
	if cfg.Redis.URL != "" {
		redisClient, err := redis.Connect(cfg.Redis.URL, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		kv = redisClient
	} else {
		appLogger.Warn("REDIS_URL not set, using in-process cache")
		kv = service.NewMemoryKV()
	}
	cacheService := service.NewCacheService(kv, cfg.Cache.TTL, appLogger)

	// AI providers
	embedder, err := service.NewEmbedder(&cfg.Embedding, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedder", zap.Error(err))
	}

	generator, err := service.NewGenerator(&cfg.LLM, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize generator", zap.Error(err))
	}
	if closer, ok := generator.(interface{ Close() }); ok {
		defer closer.Close()
	}

	// Initialize services
	chunker := service.NewChunker(cfg.RAG.MaxChunkTokens)
	docService := service.NewDocumentService(docRepo, chunkRepo, tenantRepo, chunker, embedder, cacheService, appLogger)
	queryService := service.NewQueryService(chunkRepo, requestRepo, cacheService, embedder, generator, &cfg.RAG, appLogger)
	feedbackService := service.NewFeedbackService(feedbackRepo, requestRepo, appLogger)

	// Initialize handlers
	queryHandler := handlers.NewQueryHandler(queryService, feedbackService, requestRepo, appLogger)
	docHandler := handlers.NewDocumentHandler(docService, appLogger)
	tenantHandler := handlers.NewTenantHandler(tenantRepo, appLogger)

	// Setup router
	app := api.SetupRouter(queryHandler, docHandler, tenantHandler, tenantRepo, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
