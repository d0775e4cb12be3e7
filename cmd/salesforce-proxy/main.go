// Package main is the entry point for the Salesforce SOQL proxy, an
// independent service that exchanges an OAuth refresh token for access
// tokens and forwards SOQL queries to the Salesforce REST API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jalexanderII/101-Demo/internal/salesforce"
	"github.com/jalexanderII/101-Demo/pkg/logger"
)

func main() {
	// Load configuration
	cfg := salesforce.Load()

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	if missing := cfg.Missing(); len(missing) > 0 {
		// Not fatal: the status endpoint reports what to configure and
		// the auth flow can mint a refresh token.
		log.Warn().Strs("missing", missing).Msg("Salesforce credentials incomplete, queries will return 503")
	}

	log.Info().
		Str("login_url", cfg.LoginURL).
		Str("api_version", cfg.APIVersion).
		Msg("Starting Salesforce proxy")

	client := salesforce.NewClient(cfg, log)
	tokens := salesforce.NewTokenManager(client, cfg.RefreshToken, log)
	handler := salesforce.NewHandler(cfg, client, tokens, log)
	srv := salesforce.NewServer(cfg, handler, log)

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
