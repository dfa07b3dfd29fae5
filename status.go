package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gazruxenginering/doclocker/internal/config"
	"github.com/gazruxenginering/doclocker/internal/gdrive"
	"github.com/gazruxenginering/doclocker/internal/runlock"
	"github.com/gazruxenginering/doclocker/internal/schedule"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// Credential state constants for status reporting.
const (
	credentialsInline  = "inline"
	credentialsFile    = "file"
	credentialsMissing = "missing"
)

// Process state constants for the daemon and sync lines.
const (
	processStopped = "stopped"
	processRunning = "running"
	processIdle    = "idle"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mirror size, last sync, and daemon state",
		Long: `Display the state of this data directory: how many folders and files are
mirrored, the most recent sync run, whether the daemon and a sync are running,
when the next scheduled sync fires, and where credentials come from.

Reads local state only; never contacts Drive.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusOutput is the JSON output schema for the status command.
type statusOutput struct {
	Database     string       `json:"database"`
	Roots        int          `json:"roots"`
	Folders      int          `json:"folders"`
	Files        int          `json:"files"`
	Daemon       processState `json:"daemon"`
	Sync         processState `json:"sync"`
	NextSync     string       `json:"next_sync"`
	Credentials  string       `json:"credentials"`
	LastRun      *syncRunJSON `json:"last_run,omitempty"`
	lastRunStart time.Time
}

// processState is the liveness of a PID-recording lock holder.
type processState struct {
	State string `json:"state"`
	PID   int    `json:"pid,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	return withStore(cmd.Context(), cc, func(st *store.Store) error {
		out, err := buildStatus(cmd.Context(), cc.Cfg, st, time.Now())
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), out)
		}

		printStatusText(cmd.OutOrStdout(), out)

		return nil
	})
}

func buildStatus(ctx context.Context, cfg *config.Config, st *store.Store, now time.Time) (*statusOutput, error) {
	folders, files, err := st.Stats(ctx)
	if err != nil {
		return nil, err
	}

	out := &statusOutput{
		Database:    cfg.DatabasePath(),
		Roots:       len(cfg.Roots),
		Folders:     folders,
		Files:       files,
		Daemon:      holderState(cfg.PIDPath(), processStopped),
		Sync:        holderState(cfg.LockPath(), processIdle),
		Credentials: credentialsState(cfg),
	}

	if weekly, err := schedule.ParseWeekly(cfg.ScheduleWeekday, cfg.ScheduleTime, time.Local); err == nil {
		out.NextSync = weekly.Next(now).Format(time.RFC3339)
	}

	runs, err := st.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}

	if len(runs) == 1 {
		r := &runs[0]
		out.LastRun = &syncRunJSON{
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
		}
		out.lastRunStart = r.StartedAt
	}

	return out, nil
}

// holderState reads the PID recorded in a lock file and reports whether that
// process is alive. A recorded PID whose process is gone is a crashed holder;
// the kernel has already dropped its flock.
func holderState(path, idle string) processState {
	pid, err := runlock.Holder(path)
	if err != nil || !processAlive(pid) {
		return processState{State: idle}
	}

	return processState{State: processRunning, PID: pid}
}

func credentialsState(cfg *config.Config) string {
	if cfg.CredentialsJSON != "" {
		return credentialsInline
	}

	if _, err := gdrive.LoadCredentials("", cfg.CredentialsPath()); errors.Is(err, gdrive.ErrNoCredentials) {
		return credentialsMissing
	}

	return credentialsFile
}

func printStatusText(w io.Writer, s *statusOutput) {
	fmt.Fprintf(w, "Database:    %s\n", s.Database)
	fmt.Fprintf(w, "Mirror:      %d folders, %d files across %d roots\n", s.Folders, s.Files, s.Roots)
	fmt.Fprintf(w, "Daemon:      %s\n", describeProcess(s.Daemon))
	fmt.Fprintf(w, "Sync:        %s\n", describeProcess(s.Sync))

	if s.NextSync != "" {
		fmt.Fprintf(w, "Next sync:   %s\n", s.NextSync)
	}

	fmt.Fprintf(w, "Credentials: %s\n", s.Credentials)

	if s.LastRun == nil {
		fmt.Fprintln(w, "Last run:    never")
		return
	}

	fmt.Fprintf(w, "Last run:    %s %s", s.LastRun.Status, formatTime(s.lastRunStart))

	if s.LastRun.Error != "" {
		fmt.Fprintf(w, " (%s)", s.LastRun.Error)
	}

	fmt.Fprintln(w)
}

func describeProcess(p processState) string {
	if p.State == processRunning {
		return fmt.Sprintf("%s (PID %d)", p.State, p.PID)
	}

	return p.State
}

// processAlive reports whether pid names a live process, using signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return proc.Signal(syscallSignalZero) == nil
}
