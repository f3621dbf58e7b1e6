package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost:8787", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.ShutdownTimeoutSeconds)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8787", cfg.Listen)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"listen": "127.0.0.1:9000",
		"log_level": "debug",
		"store": {"driver": "sqlite", "path": "/tmp/threads.db"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/threads.db", cfg.Store.Path)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Listen = "127.0.0.1:9100"
	cfg.LogLevel = "debug"
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", reloaded.Listen)
	assert.Equal(t, "debug", reloaded.LogLevel)
}

func TestSaveWithoutSourcePath(t *testing.T) {
	assert.Error(t, Default().Save())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"remote without endpoint", func(c *Config) { c.Store.Driver = "remote" }, true},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"negative shutdown", func(c *Config) { c.ShutdownTimeoutSeconds = -1 }, true},
		{"remote with endpoint", func(c *Config) {
			c.Store.Driver = "remote"
			c.Store.Endpoint = "https://store.example.com/v1"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
