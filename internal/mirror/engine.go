package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gazruxenginering/doclocker/internal/metrics"
	"github.com/gazruxenginering/doclocker/internal/runlock"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Lister   TreeLister
	Store    Store
	Lock     Locker
	Roots    []Root // crawled in this order
	MaxDepth int    // 0 = unbounded
	Logger   *slog.Logger
}

// Engine runs mirror syncs.
type Engine struct {
	lister   TreeLister
	store    Store
	lock     Locker
	roots    []Root
	maxDepth int
	logger   *slog.Logger
	nowFunc  func() time.Time // injectable for deterministic tests
}

// NewEngine creates an Engine. Roots must be non-empty.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("mirror: no roots configured")
	}

	if cfg.Lister == nil || cfg.Store == nil || cfg.Lock == nil {
		return nil, errors.New("mirror: lister, store, and lock are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		lister:   cfg.Lister,
		store:    cfg.Store,
		lock:     cfg.Lock,
		roots:    slices.Clone(cfg.Roots),
		maxDepth: cfg.MaxDepth,
		logger:   logger,
		nowFunc:  time.Now,
	}, nil
}

// Run executes one sync run:
//  1. Acquire the run lock (ErrSyncRunning if held; nothing recorded)
//  2. Load the stored nodes
//  3. Crawl every root in order, deduplicating by id
//  4. Diff: stored ids not visited are deleted; visited are upserted and
//     counted as new or updated only when they differ from the stored row
//  5. Apply upserts then deletes in one transaction
//  6. Append a SyncRun, success or failed
//  7. Release the lock
//
// The returned Report is non-nil whenever the lock was acquired.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	release, err := e.lock.TryLock()
	if errors.Is(err, runlock.ErrHeld) {
		e.logger.Info("sync skipped: another run holds the lock")
		metrics.RecordLockContention()

		return nil, ErrSyncRunning
	}

	if err != nil {
		return nil, fmt.Errorf("mirror: acquiring run lock: %w", err)
	}
	defer release()

	start := e.nowFunc()
	report := &Report{RunID: uuid.New().String(), StartedAt: start}

	e.logger.Info("sync run starting",
		slog.String("run_id", report.RunID),
		slog.Int("roots", len(e.roots)),
	)

	runErr := e.mirror(ctx, report)
	report.Duration = e.nowFunc().Sub(start)

	e.recordRun(ctx, report, runErr)

	if runErr != nil {
		e.logger.Error("sync run failed",
			slog.String("run_id", report.RunID),
			slog.Duration("duration", report.Duration),
			slog.String("error", runErr.Error()),
		)

		return report, runErr
	}

	e.logger.Info("sync run complete",
		slog.String("run_id", report.RunID),
		slog.Duration("duration", report.Duration),
		slog.Int("folders_new", report.FoldersNew),
		slog.Int("folders_updated", report.FoldersUpdated),
		slog.Int("files_new", report.FilesNew),
		slog.Int("files_updated", report.FilesUpdated),
		slog.Int("deleted", report.Deleted),
		slog.Int("duplicates", report.Duplicates),
	)

	return report, nil
}

// mirror performs steps 2-5, filling report as it goes.
func (e *Engine) mirror(ctx context.Context, report *Report) error {
	stored, err := e.store.AllNodes(ctx)
	if err != nil {
		return fmt.Errorf("mirror: loading stored nodes: %w", err)
	}

	c := newCrawler(e.lister, e.maxDepth, e.logger)

	for _, root := range e.roots {
		e.logger.Debug("crawling root", slog.String("root", root.Key), slog.String("id", root.ID))

		err := c.crawlRoot(ctx, root)
		report.Duplicates = c.duplicates

		if err != nil {
			return err
		}
	}

	countChanges(report, c.visited, stored)

	deletes := make([]string, 0)

	for id := range stored {
		if _, ok := c.seen[id]; !ok {
			deletes = append(deletes, id)
		}
	}

	slices.Sort(deletes)
	report.Deleted = len(deletes)

	if err := e.store.ApplyMirror(ctx, c.visited, deletes); err != nil {
		return fmt.Errorf("mirror: applying changes: %w", err)
	}

	return nil
}

// countChanges classifies each visited node against its stored row, split
// by kind: new when absent, updated when any field differs. An unchanged
// node counts toward neither.
func countChanges(report *Report, visited []store.Node, stored map[string]store.Node) {
	for i := range visited {
		n := &visited[i]

		if n.IsDir() {
			report.Folders++
		} else {
			report.Files++
		}

		prev, existed := stored[n.ID]

		switch {
		case existed && prev == *n:
			// unchanged
		case n.IsDir() && existed:
			report.FoldersUpdated++
		case n.IsDir():
			report.FoldersNew++
		case existed:
			report.FilesUpdated++
		default:
			report.FilesNew++
		}
	}
}

// recordRun appends the SyncRun and updates metrics. The log write survives
// cancellation of ctx so an interrupted run is still recorded as failed.
func (e *Engine) recordRun(ctx context.Context, report *Report, runErr error) {
	run := &store.SyncRun{
		ID:             report.RunID,
		StartedAt:      report.StartedAt,
		Status:         store.RunSuccess,
		FoldersNew:     report.FoldersNew,
		FoldersUpdated: report.FoldersUpdated,
		FilesNew:       report.FilesNew,
		FilesUpdated:   report.FilesUpdated,
		Deleted:        report.Deleted,
		Duplicates:     report.Duplicates,
		Duration:       report.Duration,
	}

	if runErr != nil {
		run.Status = store.RunFailed
		run.Error = runErr.Error()
	}

	if err := e.store.AppendRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("failed to record sync run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	metrics.RecordSyncRun(runErr == nil, report.Duration)

	if runErr == nil {
		metrics.SetMirrorSize(report.Folders, report.Files)
		metrics.RecordMirrorChanges(report.Deleted, report.Duplicates)
	}
}
