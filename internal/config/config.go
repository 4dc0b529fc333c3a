package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration, read from environment variables.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"focusvault.db"`
	JWTSecret    string `env:"JWT_SECRET"`

	// CookieSecure defaults to true; disable only for local development.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`
	BcryptCost   int  `env:"BCRYPT_COST" envDefault:"12"`

	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	// CheckpointInterval is counted in ticks.
	CheckpointInterval int `env:"CHECKPOINT_INTERVAL" envDefault:"15"`

	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND" envDefault:"0.2"`
	LoginRateBurst     float64 `env:"LOGIN_RATE_BURST" envDefault:"5"`

	OTelEndpoint    string `env:"OTEL_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"focusvault"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("CHECKPOINT_INTERVAL must not be negative, got %d", c.CheckpointInterval)
	}
	if c.LoginRatePerSecond < 0 || c.LoginRateBurst < 1 {
		return errors.New("LOGIN_RATE_PER_SECOND must be >= 0 and LOGIN_RATE_BURST >= 1")
	}
	return nil
}
