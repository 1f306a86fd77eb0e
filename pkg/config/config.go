// Package config loads editor configuration from a TOML file.
//
// Configuration lives at ~/.config/parlance/config.toml by default. Every
// field has a working default, so a missing file is not an error.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/parlance/pkg/perrors"
)

// ScrapConfig selects and tunes the soft-delete archive backend.
type ScrapConfig struct {
	// Backend is one of "file", "memory", or "redis".
	Backend string `toml:"backend"`

	// Dir overrides the archive directory for the file backend.
	Dir string `toml:"dir"`

	// RedisURL is the connection URL for the redis backend.
	RedisURL string `toml:"redis_url"`

	// RetentionDays is how long archived entries are kept. Zero selects
	// the built-in default.
	RetentionDays int `toml:"retention_days"`
}

// Config is the root configuration.
type Config struct {
	// UndoCapacity bounds the undo history. Zero selects the built-in
	// default.
	UndoCapacity int `toml:"undo_capacity"`

	// Verbose enables debug logging.
	Verbose bool `toml:"verbose"`

	Scrap ScrapConfig `toml:"scrap"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Scrap: ScrapConfig{Backend: "file"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", perrors.Wrap(perrors.ErrCodeStorage, err, "resolve home directory")
	}
	return filepath.Join(home, ".config", "parlance", "config.toml"), nil
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. An empty path means the default location.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeStorage, err, "read config %s", path)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeDecode, err, "parse config %s", path)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Scrap.Backend {
	case "", "file", "memory", "redis":
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "unknown scrap backend %q", c.Scrap.Backend)
	}
	if c.Scrap.Backend == "redis" && c.Scrap.RedisURL == "" {
		return perrors.New(perrors.ErrCodeInvalidInput, "scrap backend redis requires redis_url")
	}
	if c.UndoCapacity < 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "undo_capacity must not be negative")
	}
	if c.Scrap.RetentionDays < 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "retention_days must not be negative")
	}
	return nil
}
