package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/gazruxenginering/doclocker/internal/runlock"
)

// writePIDFile records the current process ID at path under an exclusive
// flock. Returns a cleanup function that removes the file and releases the
// lock. If the lock cannot be acquired, another daemon is already running.
func writePIDFile(path string) (cleanup func(), err error) {
	release, err := runlock.New(path).TryLock()
	if errors.Is(err, runlock.ErrHeld) {
		return nil, fmt.Errorf("another doclocker serve is already running (could not lock %s)", path)
	}

	if err != nil {
		return nil, fmt.Errorf("writing PID file: %w", err)
	}

	return func() {
		os.Remove(path)
		release()
	}, nil
}

// readPIDFile reads the PID from the given file path.
func readPIDFile(path string) (int, error) {
	pid, err := runlock.Holder(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	return pid, nil
}

// sendSIGHUP reads the PID from the daemon PID file and sends SIGHUP to the
// running daemon, which answers by starting a sync run. Stale PID files
// (process dead) are cleaned up.
func sendSIGHUP(pidPath string) (int, error) {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, runlock.ErrNoHolder) {
			return 0, fmt.Errorf("no running daemon found (no PID file at %s)", pidPath)
		}

		return 0, err
	}

	if !processAlive(pid) {
		os.Remove(pidPath)

		return 0, fmt.Errorf("daemon (PID %d) is not running (stale PID file removed)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return 0, fmt.Errorf("sending SIGHUP to daemon (PID %d): %w", pid, err)
	}

	return pid, nil
}

// syscallSignalZero probes a process without delivering a signal.
const syscallSignalZero = syscall.Signal(0)
