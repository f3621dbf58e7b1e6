package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StoreConfig configures the persistence gateway.
//
// Driver selects the backend: "remote" talks to the document API at Endpoint,
// "sqlite" keeps a local database at Path, "none" disables persistence.
type StoreConfig struct {
	Driver         string `json:"driver"`
	Endpoint       string `json:"endpoint,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Path           string `json:"path,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// EngineConfig configures the task execution engine.
type EngineConfig struct {
	// DefaultModel is used when a thread.message frame carries no llm override
	DefaultModel string `json:"default_model,omitempty"`
}

// Config represents application configuration
type Config struct {
	Listen   string       `json:"listen"`
	LogLevel string       `json:"log_level"`
	LogPath  string       `json:"log_path,omitempty"`
	Store    StoreConfig  `json:"store"`
	Engine   EngineConfig `json:"engine"`

	// ShutdownTimeoutSeconds bounds the drain wait on SIGINT/SIGTERM
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds,omitempty"`

	// Path the config was loaded from; empty for defaults. Not serialized.
	SourcePath string `json:"-"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Listen:   "localhost:8787",
		LogLevel: "info",
		Store: StoreConfig{
			Driver:         "none",
			TimeoutSeconds: 5,
		},
		ShutdownTimeoutSeconds: 30,
	}
}

// Load reads configuration from a JSON file, applying defaults for any
// missing fields. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.SourcePath = absPath
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}

	cfg.SourcePath = absPath
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "none", "sqlite", "remote":
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	if c.Store.Driver == "remote" && c.Store.Endpoint == "" {
		return fmt.Errorf("store driver %q requires an endpoint", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store driver %q requires a database path", c.Store.Driver)
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("shutdown_timeout_seconds must not be negative")
	}
	return nil
}

// Save writes the configuration back to its source path
func (c *Config) Save() error {
	if c.SourcePath == "" {
		return fmt.Errorf("config has no source path")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.SourcePath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(c.SourcePath, data, 0644)
}
