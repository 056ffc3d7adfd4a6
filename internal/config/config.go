// Package config loads qipu's per-store configuration (config.toml) and
// layers environment-variable overrides on top of the values loaded from
// disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// StoreVersion is the current on-disk schema version this binary understands.
const StoreVersion = 1

// Config is the contents of <store>/config.toml.
type Config struct {
	StoreVersion    int                `toml:"store_version"`
	IDScheme        string             `toml:"id_scheme"`
	DefaultNoteType string             `toml:"default_note_type"`
	LinkTypeCosts   map[string]float64 `toml:"link_type_costs"`
	Logging         LoggingConfig      `toml:"logging"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// DefaultConfig returns the configuration written by `qipu init`.
func DefaultConfig() *Config {
	return &Config{
		StoreVersion:    StoreVersion,
		IDScheme:        "qp-hex",
		DefaultNoteType: "fleeting",
		LinkTypeCosts:   map[string]float64{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config.toml from the given store root using the real
// environment. Missing file is not an error; defaults are returned.
func Load(storeRoot string) (*Config, error) {
	return LoadWithEnv(storeRoot, os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function, so tests can supply isolated environment values.
func LoadWithEnv(storeRoot string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(storeRoot, "config.toml")
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if level := getenv("QIPU_LOG"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

// Save writes the config back to <storeRoot>/config.toml.
func Save(storeRoot string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(storeRoot, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LinkTypeCost returns the configured cost scalar for a link type,
// defaulting to 1.0 when unconfigured (spec §4.2).
func (c *Config) LinkTypeCost(linkType string) float64 {
	if c == nil || c.LinkTypeCosts == nil {
		return 1.0
	}
	if v, ok := c.LinkTypeCosts[linkType]; ok {
		return v
	}
	return 1.0
}
