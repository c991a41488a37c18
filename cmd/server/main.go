package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pcprice-service/config"
	"pcprice-service/internal/api"
	"pcprice-service/internal/broker"
	"pcprice-service/internal/comparison"
	"pcprice-service/internal/matching"
	"pcprice-service/internal/redisclient"
	"pcprice-service/internal/service"
	"pcprice-service/internal/store"
	"pcprice-service/internal/util"
	"pcprice-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pcprice service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	var publisher service.EventPublisher = broker.DiscardPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	engine := matching.NewEngine(matching.EngineConfig{
		Threshold: cfg.Matching.Threshold,
		Workers:   cfg.Matching.Workers,
		Logger:    util.ComponentLogger("matching"),
	})

	matchService := service.NewMatchService(db, db, redisClient, publisher, engine, cfg.Matching.BatchLockTTL)

	var autoMatcher *service.MatchService
	if cfg.Matching.AutoMatchOnIngest {
		autoMatcher = matchService
	}
	ingestService := service.NewIngestService(db, redisClient, publisher, autoMatcher)
	catalogService := service.NewCatalogService(db)
	comparisonService := service.NewComparisonService(
		db,
		redisClient,
		comparison.NewAggregator(engine.Scorer(), comparison.DefaultMinConfidence),
		cfg.Matching.CompareCacheTTL,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var ingestWorker *worker.IngestWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicScraped, cfg.Kafka.ConsumerGroup)
		ingestWorker = worker.NewIngestWorker(consumer, ingestService, redisClient)
		go func() {
			if err := ingestWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Ingest worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ingestService, catalogService, matchService, comparisonService, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if ingestWorker != nil {
		if err := ingestWorker.Stop(); err != nil {
			logger.Warn("Error stopping ingest worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
