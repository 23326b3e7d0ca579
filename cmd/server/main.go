package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsAdapter "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/cache"
	mongoRepo "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/rest"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/security"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/tracer"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	// 1. Logger
	appLogger := logger.NewLogger()

	// 2. Configuration
	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	serviceName := cfg.ServiceName
	appLogger.Info("Application starting...", zap.String("service_name", serviceName))

	// 3. Tracer
	tp, err := tracer.Setup(context.Background(), tracer.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTExporterOTLPEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctxShutdown); err != nil {
			appLogger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	// 4. MongoDB
	mongoClient, err := mongoRepo.NewMongoDBConnection(cfg.MongoURI, cfg.MongoConnectTimeout)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.MongoDatabase)
	appLogger.Info("Successfully connected and pinged MongoDB.", zap.String("database", cfg.MongoDatabase))

	adRepo, err := mongoRepo.NewAdRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize AdRepository", zap.Error(err))
	}
	userRepo, err := mongoRepo.NewUserRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize UserRepository", zap.Error(err))
	}

	// 5. Redis. The service runs without caches when Redis is unreachable.
	var (
		adCache      domain.AdCache
		sessionCache domain.SessionCache
	)
	redisClient, err := cache.NewRedisClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, appLogger)
	if err != nil {
		appLogger.Warn("Running without Redis caches", zap.Error(err))
	} else {
		defer redisClient.Close()
		adCache = cache.NewAdCache(redisClient, cfg.AdCacheTTL, appLogger)
		sessionCache = cache.NewSessionCache(redisClient, appLogger)
	}

	// 6. MinIO
	fileStore, err := s3.NewS3Storage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOPublicURL, cfg.MinIOUseSSL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize S3 storage", zap.Error(err))
	}

	// 7. NATS
	var events domain.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natsAdapter.NewPublisher(cfg.NATSURL, appLogger, serviceName)
		if err != nil {
			appLogger.Fatal("Failed to initialize NATS publisher", zap.Error(err))
		}
		defer natsPublisher.Close()
		events = natsPublisher
	} else {
		appLogger.Info("NATS publisher not started (NATS_URL not set).")
	}

	// 8. Usecases
	hasher := security.NewBcryptVerifier(security.DefaultCost)
	signer := security.NewJWTSigner(cfg.JWTSecret)
	rules := domain.CatalogRules{Categories: cfg.AdCategories, MinPrice: cfg.MinAdPrice, MaxPrice: cfg.MaxAdPrice}

	users := usecase.NewUserDirectory(userRepo, hasher, appLogger)
	tokens := usecase.NewSessionTokenIssuer(users, signer, appLogger, usecase.WithMaxAttempts(cfg.TokenRetryLimit))
	catalog := usecase.NewAdCatalog(adRepo, users, fileStore, adCache, events, rules, appLogger)
	favourites := usecase.NewFavouritesCoordinator(catalog, users, events, appLogger)
	auth := usecase.NewAuthService(users, tokens, hasher, sessionCache, events, appLogger)

	// 9. Metrics
	var metricsManager *metrics.MetricsManager
	if cfg.PrometheusMetricsPort != "" {
		metricsManager = metrics.NewMetricsManager(serviceName)
		go func() {
			appLogger.Info("Starting Prometheus metrics server", zap.String("port", cfg.PrometheusMetricsPort))
			if err := metrics.StartMetricsServer(cfg.PrometheusMetricsPort, appLogger, metricsManager.Registry); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("Prometheus metrics server failed", zap.Error(err))
			}
		}()
	} else {
		appLogger.Info("Prometheus metrics server not started (PROMETHEUS_METRICS_PORT not set).")
	}

	// 10. HTTP server
	handler := rest.NewHandler(catalog, favourites, auth, fileStore, metricsManager, rest.Options{
		MaxUploadBytes:    cfg.MaxUploadMB << 20,
		SecureCookies:     cfg.SecureCookies,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		AuthRateBurst:     cfg.AuthRateBurst,
	}, appLogger)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           rest.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Application shutting down...")
}
