package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"garbage", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	l, err := New(LevelInfo, path)
	require.NoError(t, err)
	defer l.Close()

	l.Debug("should be filtered out")
	l.Info("hello %s", "world")
	l.Warn("careful")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "[INFO] hello world")
	assert.Contains(t, content, "[WARN] careful")
	assert.NotContains(t, content, "filtered out")
}

func TestLoggerLevelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	l, err := New(LevelError, path)
	require.NoError(t, err)
	defer l.Close()

	l.Info("before")
	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Info("after")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.False(t, strings.Contains(string(data), "before"))
	assert.Contains(t, string(data), "after")
}

func TestLoggerDisabled(t *testing.T) {
	l, err := New(LevelNone, "")
	require.NoError(t, err)
	defer l.Close()

	// Must not panic and must not create any file
	l.Error("nothing happens")
}
