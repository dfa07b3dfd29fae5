package runlock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock_WritesCurrentPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sync.lock")

	release, err := New(path).TryLock()
	require.NoError(t, err)

	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	holder, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), holder)
}

func TestTryLock_SecondAcquisitionIsHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sync.lock")

	release, err := New(path).TryLock()
	require.NoError(t, err)

	again, err := New(path).TryLock()
	require.ErrorIs(t, err, ErrHeld)
	assert.Nil(t, again)

	release()

	// Released: the next attempt succeeds.
	release2, err := New(path).TryLock()
	require.NoError(t, err)
	release2()
}

func TestRelease_ClearsHolderAndKeepsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sync.lock")

	release, err := New(path).TryLock()
	require.NoError(t, err)

	release()
	release() // idempotent

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = Holder(path)
	assert.ErrorIs(t, err, ErrNoHolder)
}

func TestTryLock_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "sync.lock")

	release, err := New(path).TryLock()
	require.NoError(t, err)
	release()

	assert.Equal(t, path, New(path).Path())
}

func TestTryLock_EmptyPath(t *testing.T) {
	t.Parallel()

	release, err := New("").TryLock()
	require.Error(t, err)
	assert.Nil(t, release)
	assert.Contains(t, err.Error(), "empty")
}

func TestHolder_MissingAndInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Holder(filepath.Join(dir, "missing.lock"))
	assert.ErrorIs(t, err, ErrNoHolder)

	bad := filepath.Join(dir, "bad.lock")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid\n"), 0o600))

	_, err = Holder(bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoHolder)
	assert.Contains(t, err.Error(), "invalid PID")
}
