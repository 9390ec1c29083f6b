package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Out: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("resource", "greeter").Msg("resource created")
		logger.Debug().Msg("hidden")

		assert.Contains(t, buf.String(), `"resource":"greeter"`)
		assert.Contains(t, buf.String(), `"message":"resource created"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("pretty console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Pretty: true, Out: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Msg("listening")
		assert.Contains(t, buf.String(), "listening")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "restx.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Msg("test message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
	})

	t.Run("rotating file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "restx.log")

		logger, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		_, ok := logger.file.(*RotatingWriter)
		assert.True(t, ok)
		require.NoError(t, logger.Close())
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Redaction: true, Out: &buf})
		require.NoError(t, err)
		defer logger.Close()
		assert.NotNil(t, logger.redactor)

		logger.Info().Str("account_password", "hunter2").Msg("relay configured")

		assert.NotContains(t, buf.String(), "hunter2")
		assert.Contains(t, buf.String(), `"account_password":"[REDACTED]"`)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Console: true, Out: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, buf.String(), `"level":"`+level+`"`)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Out: &buf})
	require.NoError(t, err)

	assert.True(t, logger.SetLevel("debug"))
	logger.Debug().Msg("now visible")
	assert.Contains(t, buf.String(), "now visible")

	assert.False(t, logger.SetLevel("shouting"))
	assert.Equal(t, zerolog.DebugLevel, logger.GetZerolog().GetLevel())
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Info().Msg("dropped")
	assert.NoError(t, logger.Close())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Out: &buf})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.With().Str("component", "server").Logger()
	child.Info().Msg("child")

	assert.Contains(t, buf.String(), `"component":"server"`)
}
