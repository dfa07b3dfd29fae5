package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT or
// SIGTERM.
//
// Under `sync` the cancel aborts the crawl; the run is still appended to
// the run log as failed, since that write ignores cancellation. Under
// `serve` it stops the scheduler, the SIGHUP watcher and the metrics
// listener, then the daemon waits for any triggered run to record itself
// before closing the store and removing its PID file.
//
// A second signal exits immediately with status 1. The kernel drops the
// sync lock with the process, so the next run is not blocked.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		watchShutdown(ctx, parent, sigCh, cancel, os.Exit, logger)
	}()

	return ctx
}

// watchShutdown cancels on the first signal from sigCh and calls exit on the
// second. It returns once ctx ends without a signal, or once parent ends
// after the first one.
func watchShutdown(
	ctx, parent context.Context, sigCh <-chan os.Signal,
	cancel context.CancelFunc, exit func(int), logger *slog.Logger,
) {
	select {
	case sig := <-sigCh:
		logger.Info("shutting down, waiting for the current run to be recorded",
			slog.String("signal", sig.String()),
		)
		cancel()
	case <-ctx.Done():
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("second signal, exiting without waiting",
			slog.String("signal", sig.String()),
		)
		exit(1)
	case <-parent.Done():
	}
}

// hangupChannel delivers SIGHUP, which asks a running daemon for an
// immediate sync run. The returned stop func unregisters the handler.
func hangupChannel() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	return ch, func() { signal.Stop(ch) }
}
