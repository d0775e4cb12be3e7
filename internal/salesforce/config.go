// Package salesforce implements the standalone SOQL proxy service: OAuth
// refresh-token exchange against the Salesforce token endpoint, a single
// process-wide token slot, and HTTP handlers that forward SOQL queries.
package salesforce

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds proxy configuration
type Config struct {
	Port           int
	LogLevel       string
	DevMode        bool
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	LoginURL       string
	APIVersion     string
	RedirectURI    string
	AllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("SERVER_PORT", 3001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		ClientID:       getEnv("SALESFORCE_CLIENT_ID", ""),
		ClientSecret:   getEnv("SALESFORCE_CLIENT_SECRET", ""),
		RefreshToken:   getEnv("SALESFORCE_REFRESH_TOKEN", ""),
		LoginURL:       strings.TrimRight(getEnv("SALESFORCE_LOGIN_URL", "https://login.salesforce.com"), "/"),
		APIVersion:     getEnv("SALESFORCE_API_VERSION", "v59.0"),
		RedirectURI:    getEnv("SALESFORCE_REDIRECT_URI", "http://localhost:3001/auth/salesforce/callback"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}
}

// Missing lists the credential variables that are not set. An empty
// result means the proxy can attempt a token refresh.
func (c *Config) Missing() []string {
	missing := []string{}
	if c.ClientID == "" {
		missing = append(missing, "SALESFORCE_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "SALESFORCE_CLIENT_SECRET")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "SALESFORCE_REFRESH_TOKEN")
	}
	return missing
}

// Configured reports whether every credential needed for the refresh
// grant is present.
func (c *Config) Configured() bool {
	return len(c.Missing()) == 0
}

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
