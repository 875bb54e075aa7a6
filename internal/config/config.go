// Package config handles resolving configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stolasapp/medstore/internal/sec"
)

// Config is the medstore configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	// DBFilepath is the SQLite shop database queried by every lookup.
	DBFilepath string `yaml:"db_filepath" validate:"required"`
	// PasswordScheme selects how the Users password column is compared.
	PasswordScheme sec.Scheme `yaml:"password_scheme" validate:"oneof=plaintext bcrypt"`
	// QueryTimeout bounds each lookup. Zero waits indefinitely.
	QueryTimeout time.Duration `yaml:"query_timeout" validate:"gte=0"`
	// BusyTimeout is how long a lookup waits on a locked database. Zero fails
	// immediately.
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
	// DevMode adds source locations to log records.
	DevMode bool `yaml:"dev_mode"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a version of the config with all default values populated.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		DBFilepath:     filepath.Join(xdg.DataHome, "medstore", "my_medicalshop.db"),
		PasswordScheme: sec.SchemePlaintext,
		QueryTimeout:   0,
		BusyTimeout:    0,
		DevMode:        false,
	}
}

// Validate checks cfg for completeness.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Load loads a YAML configuration file from a path, merges it with defaults, and
// validates it for completeness.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write stores cfg as YAML at path, readable only by the owner.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file to %s: %w", path, err)
	}
	return nil
}
