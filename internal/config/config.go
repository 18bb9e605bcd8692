package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/auth"
	"github.com/Makepad-fr/tada-sync/internal/tablesvc"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	Backend string
	DataDir string

	TableURL string
	TableKey string
	Table    string

	LogLevel zerolog.Level
	Theme    string
	Timeout  time.Duration

	keyErr error // unreadable credentials; only the remote backend cares
}

// Load reads .env (when present) and the environment. A missing .env is
// not an error; a malformed one is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Backend:  envOr("TODO_BACKEND", BackendLocal),
		DataDir:  os.Getenv("TODO_DATA_DIR"),
		TableURL: strings.TrimSpace(os.Getenv("TODO_TABLE_URL")),
		Table:    envOr("TODO_TABLE", tablesvc.DefaultTable),
		Theme:    envOr("TODO_THEME", "classic"),
		Timeout:  10 * time.Second,
		LogLevel: zerolog.WarnLevel,
	}

	if ki, err := auth.GetKey(); err != nil {
		cfg.keyErr = err
	} else if ki != nil {
		cfg.TableKey = ki.Key
	}

	if s := os.Getenv("TODO_LOG_LEVEL"); s != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("TODO_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}

	if s := os.Getenv("TODO_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("TODO_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// Validate checks the settings the chosen backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
	case BackendRemote:
		if c.TableURL == "" {
			return fmt.Errorf("remote backend needs TODO_TABLE_URL")
		}
		if c.keyErr != nil {
			return fmt.Errorf("access key: %w", c.keyErr)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendLocal, BackendRemote)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
