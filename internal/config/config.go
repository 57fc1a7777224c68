// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rawblock/wallet-gnn/internal/device"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/trainer"
)

// Config holds all engine configuration
type Config struct {
	// Server settings
	Port string
	Env  string // "development" or "production"

	// Transaction store. One of the two is required; DATABASE_URL wins.
	DatabaseURL string
	DataDir     string // CSV dataset directory

	// Model
	ModelPath   string
	Device      device.Device
	TimingScope graph.TimingScope
	LabelPolicy trainer.LabelPolicy

	FetchConcurrency int
	BatchChunkSize   int

	// Security
	APIAuthToken    string
	AllowedOrigins  string
	RateLimitPerMin int
	RateLimitBurst  int
}

const (
	DefaultPort             = "5339"
	DefaultEnv              = "development"
	DefaultModelPath        = "model.bin"
	DefaultFetchConcurrency = 8
	DefaultBatchChunkSize   = 100
	DefaultRateLimitPerMin  = 60
	DefaultRateLimitBurst   = 10
)

// ErrNoStore is returned when neither DATABASE_URL nor DATA_DIR is set.
var ErrNoStore = errors.New("DATABASE_URL or DATA_DIR is required")

// Load reads configuration from environment variables.
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DataDir:          os.Getenv("DATA_DIR"),
		ModelPath:        getEnv("MODEL_PATH", DefaultModelPath),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", DefaultFetchConcurrency),
		BatchChunkSize:   getEnvInt("BATCH_CHUNK_SIZE", DefaultBatchChunkSize),
		APIAuthToken:     os.Getenv("API_AUTH_TOKEN"),
		AllowedOrigins:   os.Getenv("ALLOWED_ORIGINS"),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MIN", DefaultRateLimitPerMin),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
	}

	var err error
	if cfg.Device, err = device.Parse(os.Getenv("DEVICE")); err != nil {
		return nil, fmt.Errorf("DEVICE: %w", err)
	}
	if cfg.TimingScope, err = graph.ParseTimingScope(os.Getenv("TIMING_SCOPE")); err != nil {
		return nil, fmt.Errorf("TIMING_SCOPE: %w", err)
	}
	if cfg.LabelPolicy, err = trainer.ParseLabelPolicy(os.Getenv("LABEL_POLICY")); err != nil {
		return nil, fmt.Errorf("LABEL_POLICY: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DataDir == "" {
		return ErrNoStore
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}
	if c.BatchChunkSize <= 0 {
		return fmt.Errorf("BATCH_CHUNK_SIZE must be positive, got %d", c.BatchChunkSize)
	}
	if c.RateLimitPerMin <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// BuilderOptions returns graph builder options for this configuration.
func (c *Config) BuilderOptions() graph.Options {
	opts := graph.DefaultOptions()
	opts.Concurrency = c.FetchConcurrency
	opts.TimingScope = c.TimingScope
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
