// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/alerts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends
// --------------------------------------------------------------------------

const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
)

// DefaultTimezone is the zone alert dates are evaluated in when
// ALERT_TIMEZONE is unset.
const DefaultTimezone = "Asia/Kolkata"

// --------------------------------------------------------------------------
// Config struct populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// User store
	StoreBackend string // firebase, postgres

	// Firebase (realtime database + cloud messaging)
	FirebaseCredentialsFile string
	FirebaseDatabaseURL     string

	// Postgres
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Weather provider
	WeatherAPIKey            string
	WeatherAPIURL            string
	WeatherHTTPTimeout       time.Duration
	WeatherRequestsPerMinute int
	WeatherCacheTTL          time.Duration

	// Alert batch
	AlertWorkers  int
	AlertTimezone string
	AlertInterval time.Duration // 0 disables the in-process ticker

	// Dedup (Redis)
	DedupEnabled  bool
	DedupTTL      time.Duration
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend: strings.ToLower(envOr("STORE_BACKEND", BackendFirebase)),

		FirebaseCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", envOr("GOOGLE_APPLICATION_CREDENTIALS", "")),
		FirebaseDatabaseURL:     envOr("FIREBASE_DATABASE_URL", ""),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 8),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		WeatherAPIKey:            envOr("WEATHER_API_KEY", ""),
		WeatherAPIURL:            strings.TrimRight(envOr("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5"), "/"),
		WeatherHTTPTimeout:       envDuration("WEATHER_HTTP_TIMEOUT", 10*time.Second),
		WeatherRequestsPerMinute: envInt("WEATHER_REQUESTS_PER_MINUTE", 60),
		WeatherCacheTTL:          envDuration("WEATHER_CACHE_TTL", 10*time.Minute),

		AlertWorkers:  envInt("ALERT_WORKERS", 4),
		AlertTimezone: envOr("ALERT_TIMEZONE", DefaultTimezone),
		AlertInterval: envDuration("ALERT_INTERVAL", 0),

		DedupEnabled:  envBool("ALERT_DEDUP_ENABLED", false),
		DedupTTL:      envDuration("ALERT_DEDUP_TTL", 36*time.Hour),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisUsername: envOr("REDIS_USERNAME", ""),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL must be set when STORE_BACKEND=%s", BackendFirebase)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, BackendFirebase, BackendPostgres)
	}
	if c.WeatherAPIKey == "" {
		return fmt.Errorf("WEATHER_API_KEY must be set")
	}
	if _, err := time.LoadLocation(c.AlertTimezone); err != nil {
		return fmt.Errorf("ALERT_TIMEZONE %q: %w", c.AlertTimezone, err)
	}
	if c.AlertWorkers < 1 {
		c.AlertWorkers = 1
	}
	return nil
}

// Location returns the time zone alert dates are evaluated in.
// Falls back to UTC if the zone cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AlertTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "10m") or a bare number
// of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
