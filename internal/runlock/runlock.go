// Package runlock provides the cross-process exclusive lock that keeps at
// most one sync run (or one daemon) alive per data directory. The lock is a
// non-blocking flock on a fixed file that also records the holder's PID.
// The kernel drops the flock when the holding process exits, so a crashed
// run never leaves a stale lock behind.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned by TryLock when another holder owns the lock.
var ErrHeld = errors.New("runlock: lock held by another run")

// ErrNoHolder is returned by Holder when the lock file is absent or empty.
var ErrNoHolder = errors.New("runlock: no holder recorded")

const (
	lockFilePermissions = 0o644
	lockDirPermissions  = 0o755
)

// Lock is an exclusive lock bound to a file path.
type Lock struct {
	path string
}

// New returns a Lock on path. Nothing is touched until TryLock.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// TryLock acquires the lock without blocking and records the current PID in
// the lock file. It returns ErrHeld when the lock is already taken, by this
// process or another. The returned release func truncates the PID, drops the
// flock, and closes the file; it is safe to call more than once.
func (l *Lock) TryLock() (release func(), err error) {
	if l.path == "" {
		return nil, errors.New("runlock: lock path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), lockDirPermissions); err != nil {
		return nil, fmt.Errorf("runlock: creating lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("runlock: opening %s: %w", l.path, err)
	}

	// flock locks belong to the open file description, so a second open in
	// the same process contends like another process would.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrHeld
		}

		return nil, fmt.Errorf("runlock: locking %s: %w", l.path, err)
	}

	if err := writePID(f); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // closing anyway
		f.Close()

		return nil, fmt.Errorf("runlock: recording PID in %s: %w", l.path, err)
	}

	released := false

	return func() {
		if released {
			return
		}

		released = true

		f.Truncate(0) //nolint:errcheck // best effort; the flock is what matters
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // Close releases it too
		f.Close()
	}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}

	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return err
	}

	// Sync to disk so readers see the PID immediately.
	return f.Sync()
}

// Holder returns the PID recorded in the lock file at path. It returns
// ErrNoHolder when the file does not exist or holds no PID (released).
func Holder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoHolder
	}

	if err != nil {
		return 0, fmt.Errorf("runlock: reading %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, ErrNoHolder
	}

	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("runlock: invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
