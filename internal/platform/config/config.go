package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSessionSecretLen = 32
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	ImageDir      string        `env:"IMAGE_DIR" default:"indexed_images"`
	ImageExt      string        `env:"IMAGE_EXT" default:".jpg"`
	MaxIndex      int           `env:"MAX_INDEX" default:"53"`
	BlinkInterval time.Duration `env:"BLINK_INTERVAL" default:"1s"`

	// Sessions no browser view ever attached to are dropped after this long without commands.
	UnviewedSessionTTL time.Duration `env:"UNVIEWED_SESSION_TTL" default:"1m"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	MaxClientsPerSession int     `env:"MAX_CLIENTS_PER_SESSION" default:"8"`
	APIRateLimit         float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst         int     `env:"API_RATE_BURST" default:"40"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
		slog.Warn("SESSION_SECRET not set, using a random secret; session cookies will not survive a restart")
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.AppEnv)
	}

	if cfg.IsProduction() && cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required in production")
	}
	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}

	if strings.TrimSpace(cfg.ImageDir) == "" {
		return errors.New("IMAGE_DIR must not be empty")
	}
	if cfg.MaxIndex < 0 {
		return fmt.Errorf("MAX_INDEX must not be negative, got %d", cfg.MaxIndex)
	}
	if cfg.BlinkInterval <= 0 {
		return fmt.Errorf("BLINK_INTERVAL must be positive, got %s", cfg.BlinkInterval)
	}
	if cfg.UnviewedSessionTTL <= 0 {
		return fmt.Errorf("UNVIEWED_SESSION_TTL must be positive, got %s", cfg.UnviewedSessionTTL)
	}
	if cfg.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %s", cfg.SessionMaxAge)
	}
	if cfg.MaxClientsPerSession < 1 {
		return fmt.Errorf("MAX_CLIENTS_PER_SESSION must be at least 1, got %d", cfg.MaxClientsPerSession)
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}

	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, minSessionSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
