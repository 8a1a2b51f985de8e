package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/job-autopilot/internal/config"
	"alfredoptarigan/job-autopilot/internal/handlers"
	"alfredoptarigan/job-autopilot/internal/reporter"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	kbRepo := repositories.NewKnowledgeBaseRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	usageRepo := repositories.NewTokenUsageRepository(db)
	budgetRepo := repositories.NewBudgetRepository(db)
	evalRepo := repositories.NewEvaluationRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize storage
	storageService := services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize Qdrant
	vectorIndex, err := services.NewQdrantIndex(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}
	if err := vectorIndex.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
	}
	log.Println("✅ Qdrant initialized successfully")

	// Initialize core services
	generatorService := services.NewGeneratorService(
		geminiService,
		cfg.Gemini.Model,
		usageRepo,
		budgetRepo,
		cfg.Budget.CeilingUSD,
		cfg.Budget.Period,
		cfg.Worker.RetryMaxAttempts,
		cfg.Worker.RetryInitialDelay,
	)
	retrievalService := services.NewRetrievalService(
		geminiService,
		vectorIndex,
		services.NewKnowledgeChunker(),
	)
	evaluatorService := services.NewEvaluatorService(
		evalRepo,
		generatorService,
		geminiService,
		cfg.Worker.ScoreThreshold,
	)
	resumeParser := services.NewResumeParserService(generatorService, kbRepo)
	submitter := services.NewPlaywrightSubmitter(cfg.Browser.Headless, cfg.Browser.ScreenshotDir)
	fetcher := services.NewPlaywrightFetcher(cfg.Browser.Headless)
	scraper := services.NewJobScraper(fetcher, generatorService, jobRepo)
	notifier := reporter.NewTelegramReporter(cfg.Telegram.BotToken, cfg.Telegram.ChatID)

	pipelineService := services.NewPipelineService(
		appRepo,
		jobRepo,
		kbRepo,
		generatorService,
		retrievalService,
		evaluatorService,
		submitter,
		notifier,
		cfg.Retrieval.MaxChunks,
		cfg.Retrieval.MaxContextChars,
		cfg.Browser.SubmitTimeout,
	)
	log.Println("✅ Services initialized successfully")

	// Initialize and start worker
	worker := services.NewWorker(
		appRepo,
		jobRepo,
		pipelineService,
		scraper,
		cfg.Worker.Concurrency,
	)
	ctx := context.Background()
	worker.Start(ctx)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userRepo)
	jobHandler := handlers.NewJobHandler(jobRepo, userRepo, worker)
	applicationHandler := handlers.NewApplicationHandler(appRepo, jobRepo, usageRepo, pipelineService, worker)
	knowledgeHandler := handlers.NewKnowledgeHandler(kbRepo, userRepo, retrievalService, resumeParser, storageService)
	usageHandler := handlers.NewUsageHandler(usageRepo, budgetRepo)
	evaluationHandler := handlers.NewEvaluationHandler(evalRepo, usageRepo, evaluatorService)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Job Autopilot API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize),
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Auth
	api.Post("/auth/register", authHandler.HandleRegister)
	api.Post("/auth/login", authHandler.HandleLogin)

	// Jobs
	api.Post("/jobs", jobHandler.HandleCreate)
	api.Get("/jobs", jobHandler.HandleList)
	api.Get("/jobs/:id", jobHandler.HandleGet)
	api.Post("/jobs/:id/skip", jobHandler.HandleSkip)
	api.Delete("/jobs/:id", jobHandler.HandleDelete)

	// Applications
	api.Post("/applications", applicationHandler.HandleCreate)
	api.Get("/applications", applicationHandler.HandleList)
	api.Get("/applications/:id", applicationHandler.HandleGet)
	api.Post("/applications/:id/cancel", applicationHandler.HandleCancel)
	api.Get("/applications/:id/usage", applicationHandler.HandleUsage)

	// Knowledge base
	api.Put("/knowledge/:userId", knowledgeHandler.HandleUpsert)
	api.Get("/knowledge/:userId", knowledgeHandler.HandleGet)
	api.Post("/knowledge/:userId/resume", knowledgeHandler.HandleResumeUpload)

	// Usage and cost
	api.Get("/usage", usageHandler.HandleList)
	api.Get("/usage/stats", usageHandler.HandleStats)
	api.Get("/usage/budget/:userId", usageHandler.HandleBudget)
	api.Get("/usage/:id/evaluations", evaluationHandler.HandleListForUsage)

	// Evaluations
	api.Post("/evaluations", evaluationHandler.HandleCreateManual)
	api.Get("/evaluations/flagged", evaluationHandler.HandleListFlagged)
	api.Get("/evaluations/below", evaluationHandler.HandleListBelowScore)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Job Autopilot API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/auth/register",
				"POST /api/v1/jobs",
				"POST /api/v1/applications",
				"PUT /api/v1/knowledge/:userId",
				"GET /api/v1/usage/stats",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
