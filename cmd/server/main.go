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

	"catalog-service/config"
	"catalog-service/internal/api"
	"catalog-service/internal/broker"
	"catalog-service/internal/pricing"
	"catalog-service/internal/redisclient"
	"catalog-service/internal/service"
	"catalog-service/internal/store"
	"catalog-service/internal/store/memory"
	"catalog-service/internal/util"
	"catalog-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var _ service.EventSink = (*broker.EventPublisher)(nil)
var _ service.Locker = (*redisclient.Client)(nil)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting catalog service", zap.String("store", cfg.Database.Driver))

	tp, err := util.InitTracer(cfg.Server.Env, cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()

	var (
		catalogStore  store.Catalog
		events        service.EventSink = service.NopSink{}
		locker        service.Locker    = service.NewLocalLocker()
		readiness     []func(context.Context) error
		historyWorker *worker.HistoryWorker
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		catalogStore = memory.New()
		logger.Warn("Using in-memory store; data is lost on exit and events are not published")

	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db.GetDB()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info("Database connected")
		catalogStore = db
		readiness = append(readiness, db.Ping)

		lockTTL := time.Duration(cfg.Redis.LockTTLSeconds) * time.Second
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, lockTTL)
		switch {
		case err == nil:
			defer redisClient.Close()
			locker = redisClient
			readiness = append(readiness, redisClient.Ping)
			logger.Info("Redis connected; graph locks are distributed")
		case cfg.Server.Env == "production":
			log.Fatalf("Failed to connect to Redis: %v", err)
		default:
			logger.Warn("Redis unavailable; graph locks are process-local", zap.Error(err))
		}

		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicCatalog))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog, cfg.Kafka.ConsumerGroup)
		historyWorker = worker.NewHistoryWorker(consumer, service.NewAuditService(db))
	}

	resolver := pricing.NewResolver(catalogStore)
	handler := api.NewHandler(api.Services{
		Catalog:     service.NewCatalogService(catalogStore, resolver, nil),
		Products:    service.NewProductService(catalogStore, events),
		Collections: service.NewCollectionService(catalogStore, locker, cfg.Catalog),
		Bundles:     service.NewBundleService(catalogStore, locker, cfg.Catalog),
		Listings:    service.NewListingService(catalogStore, events),
		Suggestions: service.NewSuggestionService(catalogStore),
	})
	for _, check := range readiness {
		handler.WithReadiness(check)
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		handler.WithRateLimiter(api.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if historyWorker != nil {
		go func() {
			if err := historyWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("History worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range quit {
		if sig != syscall.SIGHUP {
			break
		}
		limits := cfg.Catalog.Reload()
		logger.Info("Catalog limits reloaded",
			zap.Int("max_collection_depth", limits.MaxCollectionDepth),
			zap.Int("bundle_max_depth", limits.BundleMaxDepth))
	}

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if historyWorker != nil {
		if err := historyWorker.Stop(); err != nil {
			logger.Error("Failed to stop history worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
