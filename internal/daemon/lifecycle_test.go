package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	cfg := testConfig(t)
	daemon, err := New(cfg, nil)
	require.NoError(t, err)

	lm := NewLifecycleManager(daemon)
	assert.Equal(t, daemon, lm.daemon)
	assert.Equal(t, filepath.Join(cfg.DataDir, "restx.pid"), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	daemon, err := New(testConfig(t), nil)
	require.NoError(t, err)
	lm := NewLifecycleManager(daemon)

	require.NoError(t, lm.Start())
	_, err = os.Stat(lm.pidFile)
	assert.NoError(t, err)
	assert.True(t, lm.IsRunning())

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, lm.Stop())
	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, lm.IsRunning())

	// removing twice is fine
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerStaleFile(t *testing.T) {
	daemon, err := New(testConfig(t), nil)
	require.NoError(t, err)
	lm := NewLifecycleManager(daemon)

	require.NoError(t, os.WriteFile(lm.pidFile, []byte("garbage"), 0644))
	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("-4"), 0644))
	_, err = ReadPID(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.pid")
	require.NoError(t, os.WriteFile(good, []byte("1234\n"), 0644))
	pid, err := ReadPID(good)
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)
}

func TestProcessRunning(t *testing.T) {
	assert.True(t, ProcessRunning(os.Getpid()))
}
