package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Runtime
	Env      string
	LogLevel string
	Port     string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline endpoints (X-API-Key)
	PipelineAPIKey string

	// Quote provider
	QuoteUsername string
	QuotePassword string
	QuoteBaseURL  string
	QuoteMarket   string
	QuoteTimeout  time.Duration

	// Price refresh
	RefreshSchedule string
	RefreshEnabled  bool

	// Quote cache; disabled when RedisAddr is empty
	RedisAddr     string
	QuoteCacheTTL time.Duration

	CORSAllowedOrigins []string
	ReportTimezone     string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "brokerfolio"),
		DBPassword: getEnv("DB_PASSWORD", "brokerfolio"),
		DBName:     getEnv("DB_NAME", "brokerfolio"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		QuoteUsername: os.Getenv("IOL_USERNAME"),
		QuotePassword: os.Getenv("IOL_PASSWORD"),
		QuoteBaseURL:  getEnv("IOL_BASE_URL", "https://api.invertironline.com"),
		QuoteMarket:   getEnv("IOL_MARKET", "bCBA"),

		RefreshSchedule: getEnv("PRICE_REFRESH_SCHEDULE", "@every 30m"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		ReportTimezone:  getEnv("REPORT_TIMEZONE", "America/Argentina/Buenos_Aires"),
	}

	var err error
	if config.JWTExpirationDur, err = parseDuration("JWT_EXPIRES_IN", "24h"); err != nil {
		return nil, err
	}
	if config.QuoteTimeout, err = parseDuration("IOL_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if config.QuoteCacheTTL, err = parseDuration("QUOTE_CACHE_TTL", "1m"); err != nil {
		return nil, err
	}
	if config.RefreshEnabled, err = parseBool(os.Getenv("PRICE_REFRESH_ENABLED"), true); err != nil {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_ENABLED value: %w", err)
	}
	config.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// QuoteConfigured reports whether credentials for the quote provider are set.
func (c *Config) QuoteConfigured() bool {
	return c.QuoteUsername != "" && c.QuotePassword != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	raw := getEnv(key, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func parseBool(s string, defaultValue bool) (bool, error) {
	if s == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(s)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
