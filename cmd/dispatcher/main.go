package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/redis"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/yandex"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/config"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/dispatch"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/geocache"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	if _, err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	redisClient := redisadapter.NewClient(redisadapter.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	durable := redisadapter.NewStore(redisClient, redisadapter.DefaultKeyPrefix)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := durable.Ping(pingCtx); err != nil {
		// The cache degrades to misses while Redis is unreachable.
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	cancelPing()

	// Initialize geocoder (feature-flagged via GEOCODER_ENABLED / GEOCODER_API_KEY).
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		geocoder = yandex.NewClient(cfg.GeocoderAPIKey, cfg.GeocoderBaseURL, cfg.GeocoderTimeout, metrics, logger)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("geocoding enabled",
			"base_url", cfg.GeocoderBaseURL,
			"timeout", cfg.GeocoderTimeout,
			"concurrency", cfg.GeocoderConcurrency,
		)
	} else {
		logger.Info("geocoding disabled")
	}

	cache := geocache.New(
		geocache.NewLRUStore(durable, cfg.GeocacheLocalSize, cfg.GeocacheLocalTTL),
		geocoder,
		logger,
		metrics,
		geocache.Options{
			Timeout:     cfg.GeocoderTimeout,
			Concurrency: cfg.GeocoderConcurrency,
			NegativeTTL: cfg.GeocacheNegativeTTL,
		},
	)

	source := postgres.NewSource(db, logger)
	orchestrator := dispatch.New(cache, logger, metrics)
	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaRankingsTopic, logger)

	p := pipeline.New(source, orchestrator, writer, logger, metrics, cfg.DispatchInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(p, source), cache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start dispatch loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
