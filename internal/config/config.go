package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	Port             int
	JWTSecret        string
	SyncLatency      int     // seconds the simulated device link takes
	SyncSuccessRate  float64 // fraction of simulated syncs that succeed
	MaxRetries       int     // completion bookkeeping retries
	WatchdogInterval int     // seconds between stale-attempt sweeps
	MaxPendingAge    int     // seconds before a PENDING attempt is reaped
	ShutdownTimeout  int     // seconds
	SeedDemoData     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		DatabaseURL:      dbURL,
		Port:             3000,
		JWTSecret:        jwtSecret,
		SyncLatency:      5,
		SyncSuccessRate:  0.8,
		MaxRetries:       3,
		WatchdogInterval: 60,
		MaxPendingAge:    300,
		ShutdownTimeout:  30,
		SeedDemoData:     os.Getenv("SEED_DEMO_DATA") == "true",
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("SYNC_LATENCY_SECONDS"); v != "" {
		latency, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_LATENCY_SECONDS: %w", err)
		}
		cfg.SyncLatency = latency
	}

	if v := os.Getenv("SYNC_SUCCESS_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			return nil, fmt.Errorf("invalid SYNC_SUCCESS_RATE: must be between 0 and 1")
		}
		cfg.SyncSuccessRate = rate
	}

	if v := os.Getenv("MAX_PENDING_AGE_SECONDS"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_PENDING_AGE_SECONDS: %w", err)
		}
		cfg.MaxPendingAge = age
	}

	return cfg, nil
}
