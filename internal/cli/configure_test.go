package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "interactive configuration wizard")
	})

	t.Run("saves answers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "restx.yaml")
		answers := strings.Join([]string{"127.0.0.1", "9100", "", "memory", "warn"}, "\n") + "\n"

		output, err := executeContext(t, context.Background(), answers, "--config", path, "configure")
		require.NoError(t, err)
		assert.Contains(t, output, "Configuration saved to: "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "http://localhost:9100", cfg.Server.BaseURL)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("input ends early", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "restx.json")
		_, err := executeContext(t, context.Background(), "127.0.0.1\n", "--config", path, "configure")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration failed")
	})
}
