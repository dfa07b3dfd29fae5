//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gazruxenginering/doclocker/testutil"
)

// testDataDir is the isolated data directory the binary writes its mirror,
// lock, and PID file into. Set by setupIsolation.
var testDataDir string

// setupIsolation points HOME and the XDG directories at a temp root, writes
// a config naming only the test root, and verifies isolation. Returns a
// cleanup function that removes the temp root.
func setupIsolation(rootID string) func() {
	// Unset app-specific env vars that could leak production paths.
	for _, v := range []string{"DOCLOCKER_CONFIG", "DOCLOCKER_DATA_DIR", "DOCLOCKER_DB_PATH"} {
		os.Unsetenv(v)
	}

	tempRoot, err := os.MkdirTemp("", "doclocker-e2e-isolation-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating isolation temp dir: %v\n", err)
		os.Exit(1)
	}

	tempHome := filepath.Join(tempRoot, "home")
	tempConfig := filepath.Join(tempRoot, "config")
	tempData := filepath.Join(tempRoot, "data")

	for _, d := range []string{tempHome, tempConfig, tempData} {
		if mkErr := os.MkdirAll(d, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "FATAL: creating dir %s: %v\n", d, mkErr)
			os.Exit(1)
		}
	}

	os.Setenv("HOME", tempHome)
	os.Setenv("XDG_CONFIG_HOME", tempConfig)
	os.Setenv("XDG_DATA_HOME", tempData)

	appConfigDir := filepath.Join(tempConfig, "doclocker")
	if mkErr := os.MkdirAll(appConfigDir, 0o755); mkErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating app config dir: %v\n", mkErr)
		os.Exit(1)
	}

	cfg := fmt.Sprintf("log_level = \"debug\"\nmetrics_addr = \"\"\n\n[[roots]]\nkey = \"E2E\"\nid = %q\nlabel = \"E2E Root\"\n", rootID)
	if writeErr := os.WriteFile(filepath.Join(appConfigDir, "config.toml"), []byte(cfg), 0o644); writeErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing test config: %v\n", writeErr)
		os.Exit(1)
	}

	testDataDir = filepath.Join(tempData, "doclocker")

	verifyIsolation(tempRoot)

	fmt.Fprintf(os.Stderr, "E2E isolation: HOME=%s XDG_DATA_HOME=%s root=%s\n", tempHome, tempData, rootID)

	return func() {
		os.RemoveAll(tempRoot)
	}
}

// verifyIsolation hard-crashes the process if any production path could leak
// into test execution. Runs BEFORE m.Run() so no tests execute if isolation
// is broken.
func verifyIsolation(tempRoot string) {
	crash := func(msg string) {
		fmt.Fprintf(os.Stderr, "FATAL: isolation check failed: %s\n", msg)
		os.Exit(1)
	}

	for _, v := range []string{"DOCLOCKER_CONFIG", "DOCLOCKER_DATA_DIR", "DOCLOCKER_DB_PATH"} {
		if os.Getenv(v) != "" {
			crash(v + " is set and would leak production state into tests")
		}
	}

	for _, v := range []string{"HOME", "XDG_DATA_HOME", "XDG_CONFIG_HOME"} {
		val := os.Getenv(v)
		if val == "" || !strings.HasPrefix(val, tempRoot) {
			crash(v + " not overridden to temp dir")
		}
	}

	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(homeDir, tempRoot) {
		crash("os.UserHomeDir() does not point to the temp root")
	}
}

// moduleRoot finds the module root for building the binary. e2e/ is one
// level below it.
func moduleRoot() string {
	return testutil.FindModuleRoot("..")
}
