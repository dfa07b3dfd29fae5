// Package testutil provides shared test environment helpers for E2E and
// integration tests that talk to a real Drive.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

// Environment variables read by the live-Drive suites.
const (
	EnvTestRoot           = "DOCLOCKER_TEST_ROOT"
	EnvServiceAccountJSON = "DOCLOCKER_SERVICE_ACCOUNT_JSON" //nolint:gosec // G101: variable name, not a credential
)

// LoadDotEnv loads KEY=VALUE pairs from the .env file at the module root.
// Missing file is not an error (CI sets env vars directly). Existing env
// vars take precedence over .env values.
func LoadDotEnv() {
	root := FindModuleRoot("")
	if root == "" {
		return
	}

	_ = godotenv.Load(filepath.Join(root, ".env"))
}

// LiveDrive returns the service account JSON and the test root folder id,
// skipping the test when either is missing.
func LiveDrive(t *testing.T) (credentialsJSON []byte, rootID string) {
	t.Helper()

	LoadDotEnv()

	creds := os.Getenv(EnvServiceAccountJSON)
	rootID = os.Getenv(EnvTestRoot)

	if creds == "" || rootID == "" {
		t.Skipf("live Drive not configured: set %s and %s", EnvServiceAccountJSON, EnvTestRoot)
	}

	return []byte(creds), rootID
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
