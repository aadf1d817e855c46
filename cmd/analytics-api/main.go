package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mind-analytics-api/api/swagger"
	"github.com/noah-isme/mind-analytics-api/internal/handler"
	"github.com/noah-isme/mind-analytics-api/internal/middleware"
	"github.com/noah-isme/mind-analytics-api/internal/repository"
	"github.com/noah-isme/mind-analytics-api/internal/service"
	"github.com/noah-isme/mind-analytics-api/pkg/cache"
	"github.com/noah-isme/mind-analytics-api/pkg/config"
	"github.com/noah-isme/mind-analytics-api/pkg/database"
	"github.com/noah-isme/mind-analytics-api/pkg/export"
	"github.com/noah-isme/mind-analytics-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mind-analytics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mind-analytics-api/pkg/middleware/requestid"
)

// @title Mind Analytics API
// @version 1.0.0
// @description Role-gated analytics aggregation over learner and platform telemetry
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	guard := repository.NewStoreGuard(repository.GuardConfig{
		MaxConcurrent:   cfg.Store.MaxConcurrent,
		BreakerFailures: cfg.Store.BreakerFailures,
		BreakerTimeout:  cfg.Store.BreakerTimeout,
	}, logr)
	telemetry := repository.NewTelemetryRepository(db, guard, metrics, cfg.Store.MaxRowsPerQuery)
	directory := repository.NewDirectoryRepository(db, guard, metrics)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	var cacheRepo service.CacheRepository
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		redisRepo := repository.NewRedisCacheRepository(client, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		cacheRepo = repository.NewMemoryCacheRepository()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)

	policy := service.NewAccessPolicy(directory, metrics, logr)
	resolver := service.NewFilterResolver(directory, service.FilterResolverConfig{
		RetentionDays: cfg.Metrics.RetentionDays,
		DeviceTypes:   cfg.Metrics.DeviceTypes,
	}, validator.New(), metrics, logr)
	engine := service.NewMetricEngine(telemetry, service.MetricEngineConfig{
		AtRisk: service.AtRiskRule{
			ScoreThreshold: cfg.Metrics.AtRiskScoreThreshold,
			MinAttempts:    cfg.Metrics.AtRiskMinAttemptsPerWindow,
			WindowDays:     cfg.Metrics.AtRiskWindowDays,
		},
		Reliability: service.ReliabilityWeights{
			Error:           cfg.Metrics.ReliabilityWeightError,
			Latency:         cfg.Metrics.ReliabilityWeightLatency,
			LatencyTargetMs: cfg.Metrics.ReliabilityLatencyTargetMs,
		},
		AggregateFreshness: cfg.Metrics.AggregateFreshness,
		LowSampleThreshold: cfg.Metrics.LowSampleThreshold,
	}, metrics, logr)
	queries := service.NewQueryService(policy, resolver, engine, cacheSvc, metrics, logr)
	exports := service.NewExportService(queries, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, handler.RouterDeps{
		APIPrefix: cfg.APIPrefix,
		Tokens:    tokens,
		Metrics:   metrics,
		Analytics: handler.NewAnalyticsHandler(queries, exports, metrics),
		Probes:    handler.NewMetricsHandler(metrics, checks, logr),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("cache_backend", cfg.Cache.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
