// Package mirror reconciles the configured Drive root folders into the local
// node table. A run crawls every root, diffs the visited set against what is
// stored, applies upserts and deletions in one transaction, and appends a
// SyncRun to the log. At most one run proceeds at a time across processes.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/gazruxenginering/doclocker/internal/gdrive"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// ErrSyncRunning is returned when another run holds the run lock. No SyncRun
// is recorded for the rejected attempt.
var ErrSyncRunning = errors.New("mirror: sync already running")

// ErrDepthExceeded fails a run that reaches a folder nested deeper than the
// configured maximum depth.
var ErrDepthExceeded = errors.New("mirror: folder depth limit exceeded")

// ErrTooManyPages fails a run when a single folder listing never terminates.
var ErrTooManyPages = errors.New("mirror: folder listing exceeded page limit")

// --- Consumer-defined interfaces ---

// TreeLister lists one page of a remote folder's children.
// Satisfied by *gdrive.Client.
type TreeLister interface {
	ListChildren(ctx context.Context, folderID, pageToken string) (gdrive.Page, error)
}

// Store is the slice of the mirror store a run writes to.
// Satisfied by *store.Store.
type Store interface {
	AllNodes(ctx context.Context) (map[string]store.Node, error)
	ApplyMirror(ctx context.Context, upserts []store.Node, deletes []string) error
	AppendRun(ctx context.Context, run *store.SyncRun) error
}

// Locker hands out the exclusive run lock. TryLock returns runlock.ErrHeld
// when another run owns it. Satisfied by *runlock.Lock.
type Locker interface {
	TryLock() (release func(), err error)
}

// Root is one configured root folder, crawled in configuration order.
type Root struct {
	Key string
	ID  string
}

// Report summarizes one run. On failure the counts reflect whatever was
// computed before the error.
type Report struct {
	RunID          string
	StartedAt      time.Time
	Duration       time.Duration
	Folders        int // directories visited
	Files          int // files visited
	FoldersNew     int
	FoldersUpdated int
	FilesNew       int
	FilesUpdated   int
	Deleted        int
	Duplicates     int
}
