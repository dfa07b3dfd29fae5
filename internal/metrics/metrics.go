// Package metrics provides Prometheus metrics for doclocker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync run metrics
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclocker_sync_runs_total",
			Help: "Total sync runs by outcome",
		},
		[]string{"status"},
	)

	syncRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "doclocker_sync_last_run_duration_seconds",
			Help: "Duration of the most recent sync run",
		},
	)

	syncLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclocker_sync_lock_contention_total",
			Help: "Sync runs rejected because another run held the lock",
		},
	)

	// Mirror metrics
	mirrorNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "doclocker_mirror_nodes",
			Help: "Entries visited by the most recent successful sync run",
		},
		[]string{"kind"},
	)

	mirrorDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclocker_mirror_deleted_total",
			Help: "Total mirror entries removed because they vanished remotely",
		},
	)

	mirrorDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclocker_mirror_duplicates_total",
			Help: "Total remote entries seen more than once in a run",
		},
	)

	// Access metrics
	accessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclocker_access_checks_total",
			Help: "Total access evaluations by deciding tier",
		},
		[]string{"tier"},
	)

	// Download proxy metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclocker_downloads_total",
			Help: "Total proxied downloads",
		},
		[]string{"status"},
	)

	downloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclocker_download_bytes_total",
			Help: "Total bytes streamed by the download proxy",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSyncRun records the outcome and duration of a finished sync run.
func RecordSyncRun(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	syncRunsTotal.WithLabelValues(status).Inc()
	syncRunDuration.Set(duration.Seconds())
}

// RecordLockContention records a sync run rejected by the run lock.
func RecordLockContention() {
	syncLockContention.Inc()
}

// SetMirrorSize sets the folder and file counts of the last successful run.
func SetMirrorSize(folders, files int) {
	mirrorNodes.WithLabelValues("directory").Set(float64(folders))
	mirrorNodes.WithLabelValues("file").Set(float64(files))
}

// RecordMirrorChanges records deletions and duplicates from one run.
func RecordMirrorChanges(deleted, duplicates int) {
	mirrorDeletedTotal.Add(float64(deleted))
	mirrorDuplicatesTotal.Add(float64(duplicates))
}

// RecordAccessCheck records an access evaluation decided by tier
// ("none" when denied).
func RecordAccessCheck(tier string) {
	accessChecksTotal.WithLabelValues(tier).Inc()
}

// RecordDownload records a proxied download.
func RecordDownload(bytes int64, success bool) {
	downloadBytes.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	downloadsTotal.WithLabelValues(status).Inc()
}
