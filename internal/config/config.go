// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names accepted in MARKET_PROVIDER.
const (
	ProviderPolygon = "polygon"
	ProviderYahoo   = "yahoo"
)

// Config holds application configuration
type Config struct {
	Port           int
	LogLevel       string
	DevMode        bool
	CacheTTLSecs   int
	CacheMaxSize   int
	AllowedOrigins []string
	MarketProvider string
	PolygonAPIKey  string
	PolygonBaseURL string
	YahooBaseURL   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvAsInt("PORT", 8000),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		CacheTTLSecs:   getEnvAsInt("CACHE_TTL_SECONDS", 21600), // 6 hours
		CacheMaxSize:   getEnvAsInt("CACHE_MAX_SIZE", 1024),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		MarketProvider: strings.ToLower(getEnv("MARKET_PROVIDER", ProviderYahoo)),
		PolygonAPIKey:  getEnv("POLYGON_API_KEY", ""),
		PolygonBaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
		YahooBaseURL:   getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.MarketProvider {
	case ProviderPolygon:
		if c.PolygonAPIKey == "" {
			return fmt.Errorf("POLYGON_API_KEY is required when MARKET_PROVIDER=%s", ProviderPolygon)
		}
	case ProviderYahoo:
		// Yahoo endpoints are unauthenticated, nothing to check
	default:
		return fmt.Errorf("unknown MARKET_PROVIDER %q (must be %q or %q)",
			c.MarketProvider, ProviderPolygon, ProviderYahoo)
	}

	if c.CacheTTLSecs <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", c.CacheTTLSecs)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive, got %d", c.CacheMaxSize)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
