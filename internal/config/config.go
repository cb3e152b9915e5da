// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server's environment-driven configuration
type Config struct {
	// ListenAddr is the diagnostic API listen address
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StorageType selects the repository backend ("memory" or "redis")
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`

	// RedisURL is required when StorageType is "redis"
	RedisURL string `env:"REDIS_URL"`

	// Coordinator knobs
	AutoSaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"5m"`
	LoadTimeout      time.Duration `env:"LOAD_TIMEOUT" envDefault:"10s"`
	SaveTimeout      time.Duration `env:"SAVE_TIMEOUT" envDefault:"15s"`
	MaxConcurrentIO  int64         `env:"MAX_CONCURRENT_IO" envDefault:"8"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
