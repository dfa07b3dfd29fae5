package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gazruxenginering/doclocker/internal/mirror"
	"github.com/gazruxenginering/doclocker/internal/store"
)

const defaultRunsLimit = 10

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the configured Drive roots now",
		Long: `Run one sync in the foreground: crawl every configured root, upsert what
was found, and delete mirrored entries that no longer exist remotely.

If another sync (or the daemon's scheduled run) holds the run lock, sync
prints a message and exits successfully without recording a run.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	parent, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx := shutdownContext(parent, cc.Logger)

	return withStore(ctx, cc, func(st *store.Store) error {
		engine, err := cc.newEngine(ctx, st)
		if err != nil {
			return err
		}

		report, err := engine.Run(ctx)
		if errors.Is(err, mirror.ErrSyncRunning) {
			cc.Statusf("A sync is already running. Nothing to do.\n")
			return nil
		}

		if report != nil {
			if printErr := printReport(cmd.OutOrStdout(), report, err, cc.Flags.JSON); printErr != nil {
				return printErr
			}
		}

		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		return nil
	})
}

// syncReportJSON is the JSON output schema for a sync run.
type syncReportJSON struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at"`
	DurationMS     int64  `json:"duration_ms"`
	Folders        int    `json:"folders"`
	Files          int    `json:"files"`
	FoldersNew     int    `json:"folders_new"`
	FoldersUpdated int    `json:"folders_updated"`
	FilesNew       int    `json:"files_new"`
	FilesUpdated   int    `json:"files_updated"`
	Deleted        int    `json:"deleted"`
	Duplicates     int    `json:"duplicates"`
	Error          string `json:"error,omitempty"`
}

func printReport(w io.Writer, r *mirror.Report, runErr error, asJSON bool) error {
	status := string(store.RunSuccess)
	errText := ""

	if runErr != nil {
		status = string(store.RunFailed)
		errText = runErr.Error()
	}

	if asJSON {
		return printJSON(w, syncReportJSON{
			RunID:          r.RunID,
			Status:         status,
			StartedAt:      r.StartedAt.UTC().Format(timeFormatJSON),
			DurationMS:     r.Duration.Milliseconds(),
			Folders:        r.Folders,
			Files:          r.Files,
			FoldersNew:     r.FoldersNew,
			FoldersUpdated: r.FoldersUpdated,
			FilesNew:       r.FilesNew,
			FilesUpdated:   r.FilesUpdated,
			Deleted:        r.Deleted,
			Duplicates:     r.Duplicates,
			Error:          errText,
		})
	}

	verb := "finished"
	if runErr != nil {
		verb = "failed"
	}

	fmt.Fprintf(w, "Sync %s in %s (run %s)\n", verb, formatDuration(r.Duration), r.RunID)
	fmt.Fprintf(w, "  Folders:    %d (%d new, %d updated)\n", r.Folders, r.FoldersNew, r.FoldersUpdated)
	fmt.Fprintf(w, "  Files:      %d (%d new, %d updated)\n", r.Files, r.FilesNew, r.FilesUpdated)
	fmt.Fprintf(w, "  Deleted:    %d\n", r.Deleted)

	if r.Duplicates > 0 {
		fmt.Fprintf(w, "  Duplicates: %d (first occurrence kept)\n", r.Duplicates)
	}

	return nil
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the running daemon to sync now",
		Long: `Send SIGHUP to the doclocker serve daemon, which starts a sync run in the
background. The command returns immediately; use "doclocker runs" to see the
outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			pid, err := sendSIGHUP(cc.Cfg.PIDPath())
			if err != nil {
				return err
			}

			cc.Logger.Debug("sent SIGHUP", "pid", pid)
			cc.Statusf("Sync requested from daemon (PID %d)\n", pid)

			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			return withStore(cmd.Context(), cc, func(st *store.Store) error {
				runs, err := st.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}

				return printRuns(cmd.OutOrStdout(), runs, cc.Flags.JSON)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRunsLimit, "number of runs to show")

	return cmd
}

// syncRunJSON is the JSON output schema for one stored sync run.
type syncRunJSON struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	Status         string `json:"status"`
	FoldersNew     int    `json:"folders_new"`
	FoldersUpdated int    `json:"folders_updated"`
	FilesNew       int    `json:"files_new"`
	FilesUpdated   int    `json:"files_updated"`
	Deleted        int    `json:"deleted"`
	Duplicates     int    `json:"duplicates"`
	DurationMS     int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

func printRuns(w io.Writer, runs []store.SyncRun, asJSON bool) error {
	if asJSON {
		out := make([]syncRunJSON, 0, len(runs))
		for i := range runs {
			r := &runs[i]
			out = append(out, syncRunJSON{
				ID:             r.ID,
				StartedAt:      r.StartedAt.UTC().Format(timeFormatJSON),
				Status:         string(r.Status),
				FoldersNew:     r.FoldersNew,
				FoldersUpdated: r.FoldersUpdated,
				FilesNew:       r.FilesNew,
				FilesUpdated:   r.FilesUpdated,
				Deleted:        r.Deleted,
				Duplicates:     r.Duplicates,
				DurationMS:     r.Duration.Milliseconds(),
				Error:          r.Error,
			})
		}

		return printJSON(w, out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No sync runs recorded yet.")
		return nil
	}

	headers := []string{"STARTED", "STATUS", "NEW", "UPDATED", "DELETED", "DUPS", "DURATION", "ERROR"}
	rows := make([][]string, 0, len(runs))

	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			formatTime(r.StartedAt),
			string(r.Status),
			fmt.Sprintf("%d", r.FoldersNew+r.FilesNew),
			fmt.Sprintf("%d", r.FoldersUpdated+r.FilesUpdated),
			fmt.Sprintf("%d", r.Deleted),
			fmt.Sprintf("%d", r.Duplicates),
			formatDuration(r.Duration),
			r.Error,
		})
	}

	printTable(w, headers, rows)

	return nil
}
