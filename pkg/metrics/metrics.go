// Package metrics exposes scan and catalog metrics to Prometheus. Metrics are
// registered with the default registry at init and served from /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shishobooks/longbox/pkg/models"
)

// Scan metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbox_scan_runs_total",
			Help: "Total number of scan cycles by outcome",
		},
		[]string{"status"},
	)

	ScanRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbox_scan_rejected_total",
			Help: "Scan requests dropped because a scan was already running",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longbox_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longbox_scan_last_run_timestamp",
			Help: "Timestamp of the last finished scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longbox_scan_last_run_duration_seconds",
			Help: "Duration of the last scan in seconds",
		},
	)

	ScanDirectoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbox_scan_directories_total",
			Help: "Directories visited by the walker",
		},
		[]string{"result"}, // "walked", "skipped"
	)

	ScanFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbox_scan_files_seen_total",
			Help: "Comic archives seen on disk",
		},
	)

	ScanComicsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbox_scan_comics_upserted_total",
			Help: "Comic rows written to the catalog",
		},
	)

	ScanConversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbox_scan_conversions_total",
			Help: "Legacy archive conversions by outcome",
		},
		[]string{"status"},
	)

	ScanThumbnails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbox_scan_thumbnails_total",
			Help: "Thumbnail generations by outcome",
		},
		[]string{"status"},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbox_scan_errors_total",
			Help: "Per-file and per-directory scan errors",
		},
	)

	ScanReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbox_scan_reclaimed_total",
			Help: "Catalog rows removed because their file disappeared",
		},
	)
)

// Catalog metrics
var (
	CatalogComics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longbox_catalog_comics",
			Help: "Number of comics in the catalog after the last scan",
		},
	)

	LibraryTreeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "longbox_library_tree_duration_seconds",
			Help:    "Time to build a library tree for one user",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// RecordScan folds one finished cycle into the counters.
func RecordScan(status string, stats *models.ScanStats, duration time.Duration) {
	ScanRunsTotal.WithLabelValues(status).Inc()
	ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	ScanLastRunDuration.Set(duration.Seconds())

	if stats == nil {
		return
	}

	ScanDirectoriesTotal.WithLabelValues("walked").Add(float64(stats.DirsWalked))
	ScanDirectoriesTotal.WithLabelValues("skipped").Add(float64(stats.DirsSkipped))
	ScanFilesSeen.Add(float64(stats.FilesSeen))
	ScanComicsUpserted.Add(float64(stats.Upserted))
	ScanConversions.WithLabelValues("ok").Add(float64(stats.Converted))
	ScanConversions.WithLabelValues("failed").Add(float64(stats.ConvertFailed))
	ScanThumbnails.WithLabelValues("ok").Add(float64(stats.ThumbnailsOK))
	ScanThumbnails.WithLabelValues("failed").Add(float64(stats.ThumbnailsFailed))
	ScanErrors.Add(float64(stats.Errors))
	ScanReclaimed.Add(float64(stats.Reclaimed))
}

// SetRunning flips the running gauge.
func SetRunning(running bool) {
	if running {
		ScanIsRunning.Set(1)
		return
	}
	ScanIsRunning.Set(0)
}
