package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VoxMind/backend/go/internal/api"
	"VoxMind/backend/go/internal/auth"
	"VoxMind/backend/go/internal/config"
	vkafka "VoxMind/backend/go/internal/database/kafka"
	"VoxMind/backend/go/internal/database/milvus"
	vminio "VoxMind/backend/go/internal/database/minio"
	"VoxMind/backend/go/internal/database/mysql"
	"VoxMind/backend/go/internal/embedding"
	"VoxMind/backend/go/internal/llm"
	"VoxMind/backend/go/internal/memo"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/objectstore"
	"VoxMind/backend/go/internal/pipeline"
	"VoxMind/backend/go/internal/rag"
	"VoxMind/backend/go/internal/structure"
	"VoxMind/backend/go/internal/transcribe"
	"VoxMind/backend/go/internal/vectorindex"
	vhttp "VoxMind/backend/go/pkg/http"
	"VoxMind/backend/go/pkg/httpmiddleware"
	"VoxMind/backend/go/pkg/logger"
	"VoxMind/backend/go/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("memo_service", "", "")
	appLogger.Info("Logger initialized")

	// Initialize database connection
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mysql.Close()
	if err := db.AutoMigrate(&models.MemoRecord{}, &models.PipelineRun{}); err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Database ready")

	// Object storage for raw audio
	minioClient, err := vminio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	audioStore := objectstore.NewMinIOStore(minioClient, cfg.Databases.MinIO.Bucket)

	// Vector index
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
		appLogger.Fatal(err.Error())
	}
	index, err := vectorindex.NewMilvusIndex(milvusClient, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Vector index ready")

	// Remote AI clients
	aiHTTPClient, err := vhttp.NewClient(cfg.Middleware.CircuitBreaker)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	transcriber, err := transcribe.NewTranscriber(cfg.STT, aiHTTPClient)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	structurer, err := structure.NewStructurer(ctx, cfg.Structure)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	embedder, err := embedding.NewModel(ctx, cfg.Embedding)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	completionModel, err := llm.NewModel(ctx, cfg.Completion)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Model clients ready")

	// Core services
	memoStore := memo.NewMySQLStore(db)
	memoService := memo.NewService(memoStore, index, audioStore, appLogger)

	policies, err := pipeline.PoliciesFromConfig(cfg.Pipeline)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Log:         appLogger,
		Runs:        pipeline.NewMySQLRunStore(db),
		Audio:       audioStore,
		Transcriber: transcriber,
		Structurer:  structurer,
		Embedder:    embedder,
		Memos:       memoStore,
		Index:       index,
		Policies:    policies,
		RetainAudio: cfg.Pipeline.RetainAudio,
		Async:       true,
	})
	engine := rag.NewEngine(embedder, index, memoStore, completionModel, cfg.RAG.TopK, appLogger)

	checks := map[string]api.HealthCheck{
		"mysql":  mysql.HealthCheck,
		"minio":  vminio.HealthCheck,
		"milvus": milvusClient.HealthCheck,
	}

	// Optional Kafka ingestion: uploads publish events, a consumer starts runs
	var publish func(ctx context.Context, event pipeline.UploadEvent) error
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := vkafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer kafkaClient.Close()
		checks["kafka"] = kafkaClient.HealthCheck

		publish = func(ctx context.Context, event pipeline.UploadEvent) error {
			return pipeline.PublishUpload(ctx, kafkaClient, event)
		}
		consumer := pipeline.NewConsumer(kafkaClient, orchestrator, appLogger)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				appLogger.WithError(err).Error("upload event consumer stopped")
			}
		}()
		appLogger.Info("Kafka ingestion enabled")
	}

	handler := api.NewHandler(orchestrator, engine, memoService, audioStore, publish,
		cfg.Upload.MaxSizeMB, checks, appLogger)
	keyCache := auth.NewKeyCache(cfg.Auth)
	router := api.SetupRouter(handler, cfg.App.Environment, cfg.Auth, keyCache)

	// Server-side rate limiting and circuit breaking, enabled by config
	var rootHandler http.Handler = router
	if cfg.Middleware.RateLimiter.Enabled {
		limiter := ratelimiter.NewTokenBucket(cfg.Middleware.RateLimiter.Rate, cfg.Middleware.RateLimiter.Capacity)
		rootHandler = httpmiddleware.RateLimit(limiter)(rootHandler)
	}

	server := &http.Server{
		Addr:    ":8080",
		Handler: rootHandler,
	}

	go func() {
		appLogger.Info("Starting server on " + server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err.Error())
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("server shutdown failed")
		os.Exit(1)
	}
}
