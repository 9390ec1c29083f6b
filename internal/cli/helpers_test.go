package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/components"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/resource"
	"github.com/harun/restx/pkg/server"
)

// newTestServer runs the full HTTP stack and returns its URL
func newTestServer(t *testing.T) string {
	t.Helper()

	registry := component.NewRegistry()
	require.NoError(t, components.RegisterAll(registry))

	manager, err := resource.NewManager(resource.Config{
		Registry: registry,
		Store:    resource.NewMemoryStore(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	d, err := dispatcher.New(dispatcher.Config{Resources: manager, Logger: zerolog.Nop()})
	require.NoError(t, err)

	s, err := server.New(server.Options{Version: version}, server.Deps{
		Registry:   registry,
		Resources:  manager,
		Dispatcher: d,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// writeConfig writes a config file keeping all state under a temp dir
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if body == "" {
		body = `{"data_dir": "` + filepath.ToSlash(dir) + `"}`
	}
	path := filepath.Join(dir, "restx.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	return executeContext(t, context.Background(), "", args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
