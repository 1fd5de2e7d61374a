package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"shopkeeper/internal/config"
	"shopkeeper/internal/database"
	"shopkeeper/internal/handlers"
	"shopkeeper/internal/jobs"
	"shopkeeper/internal/knowledge"
	"shopkeeper/internal/logging"
	"shopkeeper/internal/middleware"
	"shopkeeper/internal/orchestrator"
	"shopkeeper/internal/provider"
	"shopkeeper/internal/registry"
	"shopkeeper/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logger for request-scoped dispatch logging
	logging.Init()

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	cfg := config.Load()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// MongoDB is required: documents, chunks and settings all live there
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI is required")
	}
	db, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	initCtx, cancelInit := context.WithTimeout(rootCtx, 30*time.Second)
	if err := db.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	cancelInit()
	log.Println("✅ MongoDB connected and indexes ensured")

	// Redis is optional: without it embeddings are recomputed on every miss
	var embedCache knowledge.EmbeddingCache
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, embedding cache disabled: %v", err)
		} else {
			embedCache = redisService
			log.Println("✅ Redis connected, embedding cache enabled")
		}
	} else {
		log.Println("⚠️  REDIS_URL not set, embedding cache disabled")
	}

	// Static skill model table, hot-reloaded on file change
	skillModels, err := config.LoadSkillModels(cfg.SkillModelsFile)
	if err != nil {
		log.Fatalf("❌ Failed to load skill models from %s: %v", cfg.SkillModelsFile, err)
	}
	reg := registry.New(skillModels)
	log.Printf("✅ Loaded skill model table (%d skills) from %s", len(skillModels.Skills), cfg.SkillModelsFile)

	if err := config.WatchSkillModels(rootCtx, cfg.SkillModelsFile, reg.ReloadDefaults); err != nil {
		log.Printf("⚠️  Skill model file watch disabled: %v", err)
	}

	// Dynamic overrides from the settings store, refreshed periodically
	settingsService := services.NewSettingsService(db)
	refresher := jobs.NewOverrideRefresher(settingsService, reg)
	if err := refresher.Run(rootCtx); err != nil {
		log.Printf("⚠️  Initial override load failed, starting with static table only: %v", err)
	}

	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := scheduler.AddInterval("override-refresh", cfg.OverrideRefreshInterval, refresher.Run); err != nil {
		log.Fatalf("❌ Failed to schedule override refresh: %v", err)
	}
	scheduler.Start()
	log.Printf("🕐 Background jobs: override refresh (every %s)", cfg.OverrideRefreshInterval)

	// Provider clients: nil entries mean the provider is not configured and
	// dispatch skips over it to the next fallback
	clients := &provider.Set{}
	if cfg.UnifiedAPIKey != "" {
		clients.Unified = provider.NewUnifiedClient(cfg.UnifiedEndpoint, cfg.UnifiedAPIKey, cfg.ProviderTimeout)
		log.Println("✅ Unified gateway client configured")
	} else {
		log.Println("⚠️  UNIFIED_API_KEY not set, unified provider disabled")
	}
	if cfg.SiliconFlowAPIKey != "" {
		clients.SiliconFlow = provider.NewSiliconFlowClient(cfg.SiliconFlowEndpoint, cfg.SiliconFlowAPIKey, cfg.ProviderTimeout)
		log.Println("✅ SiliconFlow client configured")
	} else {
		log.Println("⚠️  SILICONFLOW_API_KEY not set, siliconflow provider disabled")
	}
	if cfg.VolcAccessKeyID != "" && cfg.VolcSecretAccessKey != "" {
		clients.Volc = provider.NewVolcClient(cfg.VolcAccessKeyID, cfg.VolcSecretAccessKey, cfg.VolcHost, cfg.VolcRegion, cfg.ProviderTimeout)
		log.Println("✅ Volcengine client configured")
	} else {
		log.Println("⚠️  Volcengine credentials not set, volcengine provider disabled")
	}

	// Knowledge base: embeddings ride the unified gateway
	knowledgeStore := knowledge.NewMongoStore(db)
	var knowledgeService *knowledge.Service
	if cfg.UnifiedAPIKey != "" {
		embedder := provider.NewEmbeddingClient(cfg.UnifiedEndpoint, cfg.UnifiedAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingRPS, cfg.ProviderTimeout)
		knowledgeService = knowledge.NewService(knowledgeStore, embedder, embedCache)
		log.Printf("✅ Knowledge service initialized (model=%s, dim=%d)", cfg.EmbeddingModel, cfg.EmbeddingDimension)
	} else {
		log.Println("⚠️  Knowledge service disabled: no embedding provider configured")
	}

	metrics := services.InitMetrics()

	var retriever orchestrator.KnowledgeRetriever
	if knowledgeService != nil {
		retriever = knowledgeService
	}
	orch := orchestrator.NewService(reg, clients, retriever, metrics)

	app := fiber.New(fiber.Config{
		AppName:      "Shopkeeper API",
		BodyLimit:    10 * 1024 * 1024, // 10MB, image attachments arrive base64-encoded
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // generation requests can run long
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("shopkeeper")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Dispatch=%d/min, Ingest=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.DispatchMax,
		rateLimitConfig.IngestMax,
	)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	healthHandler := handlers.NewHealthHandler(db)
	dispatchHandler := handlers.NewDispatchHandler(orch)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/dispatch", middleware.DispatchRateLimiter(rateLimitConfig), dispatchHandler.Dispatch)
	api.Post("/images", middleware.DispatchRateLimiter(rateLimitConfig), dispatchHandler.GenerateImage)

	if knowledgeService != nil {
		knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeService, knowledgeStore, metrics)
		shops := api.Group("/shops/:shopId")
		shops.Post("/knowledge", middleware.IngestRateLimiter(rateLimitConfig), knowledgeHandler.CreateDocument)
		shops.Get("/knowledge", knowledgeHandler.ListDocuments)
		shops.Get("/knowledge/:id", knowledgeHandler.GetDocument)
		shops.Put("/knowledge/:id", middleware.IngestRateLimiter(rateLimitConfig), knowledgeHandler.UpdateDocument)
		shops.Delete("/knowledge/:id", knowledgeHandler.DeleteDocument)
		shops.Post("/rag/query", knowledgeHandler.RAGQuery)
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		cancelRoot()

		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelClose()
		if err := db.Close(closeCtx); err != nil {
			log.Printf("⚠️ Error closing MongoDB: %v", err)
		}
	}()

	log.Printf("🚀 Shopkeeper API listening on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
