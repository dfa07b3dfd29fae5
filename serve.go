package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gazruxenginering/doclocker/internal/metrics"
	"github.com/gazruxenginering/doclocker/internal/mirror"
	"github.com/gazruxenginering/doclocker/internal/schedule"
)

const (
	metricsReadHeaderTimeout = 5 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	var syncNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon",
		Long: `Run in the foreground as the sync daemon. A sync starts every week at the
configured weekday and time (local time), and immediately whenever the daemon
receives SIGHUP (see "doclocker trigger"). Prometheus metrics are served on
metrics_addr when it is set.

Only one daemon may run per data directory; its PID is kept in daemon.pid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, syncNow)
		},
	}

	cmd.Flags().BoolVar(&syncNow, "sync-now", false, "start a sync immediately after startup")

	return cmd
}

func runServe(cmd *cobra.Command, syncNow bool) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	parent, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx := shutdownContext(parent, logger)

	weekly, err := schedule.ParseWeekly(cc.Cfg.ScheduleWeekday, cc.Cfg.ScheduleTime, time.Local)
	if err != nil {
		return fmt.Errorf("parsing schedule: %w", err)
	}

	cleanup, err := writePIDFile(cc.Cfg.PIDPath())
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := cc.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if folders, files, statsErr := st.Stats(ctx); statsErr == nil {
		metrics.SetMirrorSize(folders, files)
	}

	engine, err := cc.newEngine(ctx, st)
	if err != nil {
		return err
	}

	runner := mirror.NewRunner(ctx, engine.Run, logger)
	// Registered after st.Close so an in-flight run finishes before the
	// store closes.
	defer runner.Wait()

	hup, stopHup := hangupChannel()
	defer stopHup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return schedule.New(weekly, runner.Trigger, logger).Run(gctx)
	})

	g.Go(func() error {
		return watchHangups(gctx, hup, runner.Trigger, logger)
	})

	if addr := cc.Cfg.MetricsAddr; addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, addr, logger)
		})
	}

	logger.Info("daemon started",
		slog.Int("pid", os.Getpid()),
		slog.String("schedule", weekly.String()),
		slog.Int("roots", len(cc.Cfg.Roots)),
	)
	cc.Statusf("Serving. Next sync %s. Send SIGHUP or run \"doclocker trigger\" to sync now.\n",
		weekly.Next(time.Now()).Format("Mon Jan _2 15:04"))

	if syncNow {
		runner.Trigger()
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("daemon stopped")

	return nil
}

// watchHangups calls trigger for every SIGHUP until ctx ends.
func watchHangups(ctx context.Context, hup <-chan os.Signal, trigger func(), logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			logger.Info("received SIGHUP, starting manual sync")
			trigger()
		}
	}
}

// serveMetrics serves /metrics until ctx ends.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", addr, err)
	}

	return serveMetricsOn(ctx, ln, logger)
}

func serveMetricsOn(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}
