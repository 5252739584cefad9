// Package main is the entry point for the ranking service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/lucentfeed/lucent/internal/api"
	"github.com/lucentfeed/lucent/internal/cache"
	"github.com/lucentfeed/lucent/internal/config"
	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/feed"
	"github.com/lucentfeed/lucent/internal/health"
	"github.com/lucentfeed/lucent/internal/metrics"
	"github.com/lucentfeed/lucent/internal/middleware"
	"github.com/lucentfeed/lucent/internal/ranking"
	"github.com/lucentfeed/lucent/internal/session"
	"github.com/lucentfeed/lucent/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Lucent Ranking Service")
		fmt.Println()
		fmt.Println("Usage: ranker [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing provider
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "lucent-ranker",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	m := metrics.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	sessionTimeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute

	// Redis is optional: without it the service runs on in-memory backends.
	var redisClient *redis.Client
	var scoreCache cache.Cache
	var sessionStore session.Store
	var redisChecker api.HealthChecker

	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, falling back to in-memory backends",
				"addr", cfg.RedisAddr,
				"error", err)
			redisClient = nil
		}
		cancel()
	}

	if redisClient != nil {
		scoreCache = cache.NewRedis(redisClient, m)
		sessionStore = session.NewRedisStore(redisClient, sessionTimeout)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis backends", "addr", cfg.RedisAddr)
	} else {
		scoreCache = cache.NewMemory(m)
		sessionStore = session.NewMemoryStore()
		logger.Info("using in-memory backends")
	}

	// Devaluation engine: file config wins over preset.
	devalCfg, ok := devaluation.Preset(cfg.DevaluationPreset)
	if !ok {
		devalCfg = devaluation.DefaultConfig()
	}
	if cfg.DevaluationPath != "" {
		loaded, err := devaluation.LoadConfig(cfg.DevaluationPath)
		if err != nil {
			logger.Warn("failed to load devaluation config, using preset",
				"path", cfg.DevaluationPath,
				"preset", cfg.DevaluationPreset,
				"error", err)
		} else {
			devalCfg = loaded
		}
	}
	engine, err := devaluation.NewEngine(devalCfg)
	if err != nil {
		logger.Error("invalid devaluation config", "error", err)
		os.Exit(1)
	}

	// Blend weights from the calibration file, defaults on failure.
	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("calibration load failed, using default weights",
			"path", cfg.CalibrationPath,
			"error", err)
	}

	pipeline, err := ranking.NewPipeline(ranking.PipelineConfig{
		Weights:         weights,
		Engine:          engine,
		Cache:           scoreCache,
		Metrics:         m,
		Logger:          logger,
		RecencyHalfLife: time.Duration(cfg.RecencyHalfLifeHours) * time.Hour,
		CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		logger.Error("failed to build ranking pipeline", "error", err)
		os.Exit(1)
	}

	// TODO: swap the in-memory sources for the vector index and stats
	// services once their clients land.
	service, err := feed.NewService(feed.ServiceConfig{
		Pipeline:       pipeline,
		Vectors:        feed.NewInMemoryVectorSource(),
		Candidates:     feed.NewInMemoryCandidateSource(),
		History:        feed.NewInMemoryHistorySource(),
		Stats:          feed.NewInMemoryStatsSource(),
		Sessions:       sessionStore,
		SessionTimeout: sessionTimeout,
		Metrics:        m,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to build feed service", "error", err)
		os.Exit(1)
	}

	handler := api.NewRouter(api.RouterConfig{
		Feed:           service,
		Health:         api.HealthHandlersConfig{RedisChecker: redisChecker},
		Registry:       registry,
		Logger:         logger,
		TracingEnabled: cfg.TracingEnabled,
		ServiceName:    "lucent-ranker",
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}

	logger.Info("server stopped")
}
