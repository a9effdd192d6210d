package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitornap.pid")

	require.NoError(t, pid.Write(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	require.NoError(t, pid.Remove(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, pid.Remove(path))
}

func TestWriteFailsWhileOtherProcessRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitornap.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := pid.Write(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))

	require.NoError(t, pid.Remove(path))
	assert.FileExists(t, path, "a file naming another process is left alone")
}

func TestWriteReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitornap.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0o600))

	require.NoError(t, pid.Write(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))
}
