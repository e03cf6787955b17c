package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/viptier/internal/config"
)

func testAppConfig(level, format string) *config.AppConfig {
	return &config.AppConfig{
		Name:        "viptier-test",
		Version:     "test",
		Environment: "development",
		LogLevel:    level,
		LogFormat:   format,
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Run("Should emit JSON with global attributes", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(testAppConfig("info", "json"), &buf)

		log.Info("hello")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "viptier-test", line["service"])
		assert.Equal(t, "test", line["version"])
		assert.Equal(t, "development", line["env"])
	})

	t.Run("Should emit text format when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(testAppConfig("info", "text"), &buf)

		log.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
		assert.Contains(t, buf.String(), "service=viptier-test")
	})

	t.Run("Should respect the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(testAppConfig("warn", "json"), &buf)

		log.Info("suppressed")
		assert.Empty(t, buf.String())

		log.Warn("emitted")
		assert.Contains(t, buf.String(), "emitted")
	})

	t.Run("Should default to JSON for an unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(testAppConfig("info", "yaml"), &buf)

		log.Info("hello")

		var line map[string]any
		assert.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	})

	t.Run("Should panic on a nil config", func(t *testing.T) {
		assert.Panics(t, func() {
			NewWithWriter(nil, &bytes.Buffer{})
		})
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"super-critical", slog.LevelInfo}, // unknown falls back to info
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}
