// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the record server's settings.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"SNAPTAB_ADDR" envDefault:":8080"`

	// RedisURL selects the Redis record store when set. Empty keeps
	// records in process memory only.
	RedisURL string `env:"REDIS_URL"`

	// RecordTTL is how long an untouched split survives. Every write
	// refreshes it.
	RecordTTL time.Duration `env:"RECORD_TTL" envDefault:"24h"`

	// CORSOrigin is the allowed browser origin.
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
