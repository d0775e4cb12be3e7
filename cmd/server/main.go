// Package main is the entry point for the finance dashboard API. It
// serves company overviews, market snapshots, price history and
// financial statements for a ticker symbol, proxying the configured
// market-data provider behind an in-memory TTL cache.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jalexanderII/101-Demo/internal/cache"
	"github.com/jalexanderII/101-Demo/internal/config"
	"github.com/jalexanderII/101-Demo/internal/market"
	"github.com/jalexanderII/101-Demo/internal/market/polygon"
	"github.com/jalexanderII/101-Demo/internal/market/yahoo"
	"github.com/jalexanderII/101-Demo/internal/metrics"
	"github.com/jalexanderII/101-Demo/internal/modules/tickers"
	"github.com/jalexanderII/101-Demo/internal/modules/users"
	"github.com/jalexanderII/101-Demo/internal/server"
	"github.com/jalexanderII/101-Demo/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("provider", cfg.MarketProvider).
		Int("cache_ttl_seconds", cfg.CacheTTLSecs).
		Int("cache_max_size", cfg.CacheMaxSize).
		Msg("Starting finance dashboard API")

	// Response cache
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	store, err := cache.New(ttl, cfg.CacheMaxSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create response cache")
	}
	metrics.RegisterCacheSize(func() float64 { return float64(store.Len()) })

	// Market data provider
	provider := buildProvider(cfg, log)

	// Services and handlers
	tickerService := tickers.NewService(provider, store, log)
	tickerHandler := tickers.NewHandler(tickerService, ttl, log)
	userHandler := users.NewHandler(users.NewDirectory(), log)

	// HTTP server
	srv := server.New(server.Deps{
		Config:  cfg,
		Store:   store,
		Tickers: tickerHandler,
		Users:   userHandler,
		Log:     log,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// buildProvider constructs the configured market-data adapter. Config
// validation already guaranteed the provider name and its credentials.
func buildProvider(cfg *config.Config, log zerolog.Logger) market.Provider {
	switch cfg.MarketProvider {
	case config.ProviderPolygon:
		return polygon.NewClient(cfg.PolygonBaseURL, cfg.PolygonAPIKey, log)
	default:
		return yahoo.NewClient(cfg.YahooBaseURL, log)
	}
}
