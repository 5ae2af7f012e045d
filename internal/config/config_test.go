package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarotskyi/neochess/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		DatabaseURL:                   "postgres://localhost:5432/neochess",
		LogLevel:                      "INFO",
		ExpandWorkerCount:             4,
		ExpandQueueSize:               256,
		CopyChunkConcurrency:          8,
		PlatformRequestTimeoutSeconds: 10,
		PlatformMaxRetries:            3,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_EmptyDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL cannot be empty")
}

func TestValidate_InvalidWorkerCounts(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{"zero expand workers", func(c *config.Config) { c.ExpandWorkerCount = 0 }, "EXPAND_WORKER_COUNT"},
		{"negative expand workers", func(c *config.Config) { c.ExpandWorkerCount = -1 }, "EXPAND_WORKER_COUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_InvalidQueueSizes(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{"zero expand queue", func(c *config.Config) { c.ExpandQueueSize = 0 }, "EXPAND_QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_InvalidCopyChunkConcurrency(t *testing.T) {
	tests := []int{0, 9, -1}
	for _, v := range tests {
		cfg := validConfig()
		cfg.CopyChunkConcurrency = v
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "COPY_CHUNK_CONCURRENCY")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"invalid level", "INVALID"},
		{"empty level", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = tt.level
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "LOG_LEVEL")
		})
	}
}

func TestValidate_LowercaseLogLevelAccepted(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "debug"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = level
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Config{
		DatabaseURL:                   "",
		LogLevel:                      "INVALID",
		ExpandWorkerCount:             0,
		ExpandQueueSize:               0,
		CopyChunkConcurrency:          0,
		PlatformRequestTimeoutSeconds: 0,
	}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "DATABASE_URL cannot be empty")
	assert.Contains(t, errStr, "LOG_LEVEL")
	assert.Contains(t, errStr, "EXPAND_WORKER_COUNT")
	assert.Contains(t, errStr, "EXPAND_QUEUE_SIZE")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	original := os.Getenv("DATABASE_URL")
	defer func() {
		if original != "" {
			os.Setenv("DATABASE_URL", original)
		} else {
			os.Unsetenv("DATABASE_URL")
		}
	}()

	os.Setenv("DATABASE_URL", "postgres://example/custom")

	cfg := config.Load()

	assert.Equal(t, "postgres://example/custom", cfg.DatabaseURL)
}
