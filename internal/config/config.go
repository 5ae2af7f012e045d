// Package config loads the ingest core's runtime configuration from the
// environment, the way every other ambient concern in this codebase is
// loaded: a thin .env overlay plus sensible defaults, validated once at
// startup.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	LogLevel string

	ExpandWorkerCount int
	ExpandQueueSize   int

	CopyChunkConcurrency int

	PlatformRequestTimeoutSeconds int
	PlatformMaxRetries            int
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		DatabaseURL: envOr("DATABASE_URL", "postgres://localhost:5432/neochess"),

		LogLevel: envOr("LOG_LEVEL", "INFO"),

		ExpandWorkerCount: envIntOr("EXPAND_WORKER_COUNT", 4),
		ExpandQueueSize:   envIntOr("EXPAND_QUEUE_SIZE", 256),

		CopyChunkConcurrency: envIntOr("COPY_CHUNK_CONCURRENCY", 8),

		PlatformRequestTimeoutSeconds: envIntOr("PLATFORM_REQUEST_TIMEOUT_SECONDS", 10),
		PlatformMaxRetries:            envIntOr("PLATFORM_MAX_RETRIES", 3),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

// Validate checks that all configuration values are sensible.
// Returns an error describing all validation failures.
func (c Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL cannot be empty")
	}

	if c.ExpandWorkerCount < 1 {
		errs = append(errs, fmt.Sprintf("EXPAND_WORKER_COUNT must be >= 1, got %d", c.ExpandWorkerCount))
	}
	if c.ExpandQueueSize < 1 {
		errs = append(errs, fmt.Sprintf("EXPAND_QUEUE_SIZE must be >= 1, got %d", c.ExpandQueueSize))
	}
	if c.CopyChunkConcurrency < 1 || c.CopyChunkConcurrency > 8 {
		errs = append(errs, fmt.Sprintf("COPY_CHUNK_CONCURRENCY must be 1-8, got %d", c.CopyChunkConcurrency))
	}
	if c.PlatformRequestTimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("PLATFORM_REQUEST_TIMEOUT_SECONDS must be >= 1, got %d", c.PlatformRequestTimeoutSeconds))
	}
	if c.PlatformMaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("PLATFORM_MAX_RETRIES must be >= 0, got %d", c.PlatformMaxRetries))
	}

	validLogLevels := map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}
	if !validLogLevels[strings.ToUpper(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be DEBUG/INFO/WARN/ERROR, got %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// MustLoad calls Load() then Validate(), panicking if validation fails.
func MustLoad() Config {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration:\n%v", err))
	}
	return cfg
}
