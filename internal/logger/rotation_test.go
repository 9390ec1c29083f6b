package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create rotating writer", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "subdir", "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(filepath.Dir(logFile))
		assert.NoError(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	data := []byte("test log message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test log message")
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	// zero size limit rotates before every write to a non-empty file
	rw, err := NewRotatingWriter(logFile, 0, 7, false)
	require.NoError(t, err)

	_, err = rw.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	files, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rotated, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(rotated))

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(current))
}

func TestRotatingWriterCompressesRotated(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 0, 0, true)
	require.NoError(t, err)

	_, err = rw.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	files, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".gz"))
}

func TestRotatingWriterConcurrent(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = rw.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 400, strings.Count(string(content), "line\n"))
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0644))

	rw := &RotatingWriter{compress: true}
	require.NoError(t, rw.compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)

	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	oldFile := logFile + ".20200101-120000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := logFile + ".20990101-120000"
	require.NoError(t, os.WriteFile(recentFile, []byte("recent log"), 0644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	// Close waits for the startup cleanup
	require.NoError(t, rw.Close())

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
