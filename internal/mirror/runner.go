package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// RunFunc performs one synchronous run. Engine.Run satisfies it.
type RunFunc func(ctx context.Context) (*Report, error)

// Runner starts runs in the background. Outcomes are observable only
// through the SyncRun log and the logs; Trigger never reports them.
type Runner struct {
	run    RunFunc
	ctx    context.Context
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a Runner whose runs use ctx. Cancelling ctx aborts any
// run in flight.
func NewRunner(ctx context.Context, run RunFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{run: run, ctx: ctx, logger: logger}
}

// Trigger starts a run on its own goroutine and returns immediately. A
// trigger that lands while another run holds the lock is logged and dropped.
func (r *Runner) Trigger() {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		if err := r.runSafely(); err != nil {
			if errors.Is(err, ErrSyncRunning) {
				r.logger.Info("triggered sync dropped: a run is already in progress")
				return
			}

			r.logger.Warn("triggered sync failed", slog.String("error", err.Error()))
		}
	}()
}

// runSafely converts a panicking run into an error so one bad run cannot
// take the daemon down.
func (r *Runner) runSafely() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mirror: panic in sync run: %v", p)
		}
	}()

	_, err = r.run(r.ctx)

	return err
}

// Wait blocks until every triggered run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
