package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/internal/tracing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRecordChange(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf)

	ctx := tracing.NewRequestContext(context.Background(), "req-1")
	a.RecordChange(ctx, AuditTypeResource, "create", "greeter", "10.0.0.1", map[string]any{"component": "Echo"}, nil)
	a.RecordChange(ctx, AuditTypeResource, "delete", "ghost", "10.0.0.1", nil, errors.New("not found"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "resource", lines[0]["event_type"])
	assert.Equal(t, "create", lines[0]["action"])
	assert.Equal(t, "greeter", lines[0]["target"])
	assert.Equal(t, "success", lines[0]["status"])
	assert.Equal(t, "10.0.0.1", lines[0]["actor"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, map[string]any{"component": "Echo"}, lines[0]["metadata"])
	assert.Contains(t, lines[0], "time")

	assert.Equal(t, "failure", lines[1]["status"])
	assert.Equal(t, map[string]any{"error": "not found"}, lines[1]["metadata"])
}

func TestRecordConfig(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf)

	a.RecordConfig(context.Background(), "reload", map[string]any{"logging.level": "debug"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "config", lines[0]["event_type"])
	assert.Equal(t, "reload", lines[0]["action"])
	assert.NotContains(t, lines[0], "target")
}

func TestNilAuditLogger(t *testing.T) {
	var a *AuditLogger
	a.RecordConfig(context.Background(), "reload", nil)
	assert.NoError(t, a.Close())
}

func TestOpenAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")

	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	a.RecordChange(context.Background(), AuditTypeSpecialized, "create", "preset", "", nil, nil)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"specialized"`)
	assert.Contains(t, string(data), `"target":"preset"`)
}
