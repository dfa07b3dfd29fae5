package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of one sync run.
type RunStatus string

// Run statuses as stored in the sync_runs.status column.
const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// SyncRun is one append-only entry in the sync run log.
type SyncRun struct {
	ID             string
	StartedAt      time.Time
	Status         RunStatus
	FoldersNew     int
	FoldersUpdated int
	FilesNew       int
	FilesUpdated   int
	Deleted        int
	Duplicates     int
	Duration       time.Duration
	Error          string
}

const (
	sqlInsertRun = `INSERT INTO sync_runs
		(id, started_at, status, folders_new, folders_updated, files_new, files_updated,
		 deleted, duplicates, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlRecentRuns = `SELECT id, started_at, status, folders_new, folders_updated,
		files_new, files_updated, deleted, duplicates, duration_ms, error
		FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
)

// AppendRun records a finished sync run. The ID is assigned when empty.
// Runs are never updated after insertion.
func (s *Store) AppendRun(ctx context.Context, run *SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		run.ID, run.StartedAt.UnixNano(), string(run.Status),
		run.FoldersNew, run.FoldersUpdated, run.FilesNew, run.FilesUpdated,
		run.Deleted, run.Duplicates, run.Duration.Milliseconds(),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("store: recording sync run: %w", err)
	}

	return nil
}

// RecentRuns returns the last n sync runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, sqlRecentRuns, n)
	if err != nil {
		return nil, fmt.Errorf("store: listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun

	for rows.Next() {
		var (
			r          SyncRun
			status     string
			startedAt  int64
			durationMS int64
			errText    sql.NullString
		)

		err := rows.Scan(&r.ID, &startedAt, &status, &r.FoldersNew, &r.FoldersUpdated,
			&r.FilesNew, &r.FilesUpdated, &r.Deleted, &r.Duplicates, &durationMS, &errText)
		if err != nil {
			return nil, fmt.Errorf("store: scanning sync run: %w", err)
		}

		r.StartedAt = time.Unix(0, startedAt).UTC()
		r.Status = RunStatus(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Error = errText.String
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating sync runs: %w", err)
	}

	return runs, nil
}
