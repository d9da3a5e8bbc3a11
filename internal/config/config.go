package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
	// WorkerCommand is the executable the process runtime launches for each
	// worker slot; WorkerArgs are appended verbatim.
	WorkerCommand string
	WorkerArgs    []string
	MinWorkers    int
	MaxWorkers    int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServiceName:       getEnv("SERVICE_NAME", "transferd"),
		WorkerCommand:     getEnv("WORKER_COMMAND", ""),
	}

	if args := os.Getenv("WORKER_ARGS"); args != "" {
		cfg.WorkerArgs = strings.Fields(args)
	}

	var err error
	if cfg.MinWorkers, err = getEnvInt("MIN_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = getEnvInt("MAX_WORKERS", 20); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the fields the given binary depends on are set.
func (c *Config) Validate(binary string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", binary)
	}
	if binary == "clock" {
		if c.WorkerCommand == "" {
			return fmt.Errorf("%s: WORKER_COMMAND is required", binary)
		}
		if c.MinWorkers < 0 {
			return fmt.Errorf("%s: MIN_WORKERS must not be negative", binary)
		}
		if c.MaxWorkers < c.MinWorkers {
			return fmt.Errorf("%s: MAX_WORKERS must be >= MIN_WORKERS", binary)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
