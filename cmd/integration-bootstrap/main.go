// Thin wrapper around gdrive.ListChildren for checking test credentials
// before running the integration and E2E suites.
//
// Usage: go run ./cmd/integration-bootstrap --root <folder-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/gazruxenginering/doclocker/internal/config"
	"github.com/gazruxenginering/doclocker/internal/gdrive"
)

func main() {
	root := flag.String("root", os.Getenv("DOCLOCKER_TEST_ROOT"), "Drive folder id the test suites mirror")
	credsPath := flag.String("credentials", "", "service account JSON file (default: "+config.EnvServiceAccountJSON+")")
	flag.Parse()

	// Missing .env is fine; CI sets the variables directly.
	_ = godotenv.Load()

	if *root == "" {
		fmt.Fprintln(os.Stderr, "no test root: pass --root or set DOCLOCKER_TEST_ROOT")
		os.Exit(1)
	}

	ctx := context.Background()
	logger := slog.Default()

	creds, err := gdrive.LoadCredentials(os.Getenv(config.EnvServiceAccountJSON), *credsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading credentials: %v\n", err)
		os.Exit(1)
	}

	client, err := gdrive.NewFromServiceAccount(ctx, creds, gdrive.MaxPageSize, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating client: %v\n", err)
		os.Exit(1)
	}

	page, err := client.ListChildren(ctx, *root, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing %s failed: %v\n", *root, err)
		os.Exit(1)
	}

	fmt.Printf("Credentials OK. %s has %d entries on its first page.\n", *root, len(page.Entries))
}
