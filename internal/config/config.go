// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime knob. Values come from IAM_* environment
// variables; defaults suit local development.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	PGDSN string `envconfig:"PG_DSN"`

	JWTSecret       string        `envconfig:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	DefaultAdminEmail string `envconfig:"DEFAULT_ADMIN_EMAIL" default:"admin@example.com"`

	RateLimitBurst     int   `envconfig:"RATE_LIMIT_BURST" default:"50"`
	RateLimitPerSecond int   `envconfig:"RATE_LIMIT_PER_SECOND" default:"25"`
	MaxBodyBytes       int64 `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
	SeedsDir      string `envconfig:"SEEDS_DIR" default:"seeds"`
}

// Load reads IAM_-prefixed environment variables into Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("IAM", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("IAM_JWT_SECRET is required")
	}
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("IAM_PG_DSN is required")
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode.
// Forbidden responses include held-claims diagnostics only outside of it.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
