package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/sperola37/smoke-watching/internal/adapter/http"
	kafkaadapter "github.com/sperola37/smoke-watching/internal/adapter/kafka"
	"github.com/sperola37/smoke-watching/internal/adapter/mapbox"
	"github.com/sperola37/smoke-watching/internal/adapter/sqlite"
	"github.com/sperola37/smoke-watching/internal/config"
	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/ingest"
	"github.com/sperola37/smoke-watching/internal/observability"
	"github.com/sperola37/smoke-watching/internal/registry"
	"github.com/sperola37/smoke-watching/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var resolver domain.Resolver
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		resolver = mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled, coordinate hints only")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	reg := registry.New(resolver, store, logger, metrics)
	engine := stats.New(store, logger, metrics, loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the registry from durable history before accepting traffic.
	if err := reg.Rebuild(ctx); err != nil {
		logger.Error("registry rebuild failed", "error", err)
		os.Exit(1)
	}
	logger.Info("registry rebuilt from history", "watch_points", reg.Len())

	reader := kafkaadapter.NewReader(cfg, logger)
	source := ingest.NewChannelSource(cfg.InjectBuffer)

	kafkaLoop := ingest.New(reader, reg, logger, metrics, cfg.BatchSize)
	injectLoop := ingest.New(source, reg, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, ingest.AnyReady{kafkaLoop, injectLoop}, reg, engine, source, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest loops, one per delivery channel.
	go func() {
		if err := kafkaLoop.Run(ctx); err != nil {
			logger.Error("kafka ingest error", "error", err)
		}
	}()
	go func() {
		if err := injectLoop.Run(ctx); err != nil {
			logger.Error("inject ingest error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("history store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
