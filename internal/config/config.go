package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"

	DispatchSync  = "sync"
	DispatchQueue = "queue"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	SQLitePath   string
	StoreTimeout time.Duration

	LevelsFile string
	SeedLevels bool

	DispatchMode string
	WorkerID     string

	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string
}

// Load reads configuration from the environment. A .env file in the
// working directory, if present, is loaded first; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendRedis)),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/hunt.db"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		LevelsFile: getEnv("LEVELS_FILE", "./data/levels.yaml"),
		SeedLevels: getEnvBool("SEED_LEVELS", true),

		DispatchMode: strings.ToLower(getEnv("DISPATCH_MODE", DispatchSync)),
		WorkerID:     getEnv("WORKER_ID", ""),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:         strings.TrimRight(getEnv("LINE_API_BASE_URL", "https://api.line.me"), "/"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendRedis, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.DispatchMode {
	case DispatchSync:
	case DispatchQueue:
		if c.StoreBackend != BackendRedis {
			errs = append(errs, errors.New("DISPATCH_MODE=queue requires the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DISPATCH_MODE %q", c.DispatchMode))
	}

	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}

	if c.IsProduction() {
		if c.LineChannelSecret == "" {
			errs = append(errs, errors.New("LINE_CHANNEL_SECRET is required in production"))
		}
		if c.LineChannelAccessToken == "" {
			errs = append(errs, errors.New("LINE_CHANNEL_ACCESS_TOKEN is required in production"))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
