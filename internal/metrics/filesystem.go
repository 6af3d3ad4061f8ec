package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"metapick/internal/filesystem"
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors encountered",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "volume"},
	)
)

// unresolvedVolume labels operations on paths outside every configured
// volume, such as a statistics file given with --stats.
const unresolvedVolume = "unknown"

// fileObserver feeds the filesystem metrics. The retry vectors are keyed
// (operation, volume) and the operation vectors (volume, operation).
type fileObserver struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	retries  map[retryOutcome]*prometheus.CounterVec
	total    *prometheus.HistogramVec
}

type retryOutcome int

const (
	retryAttempt retryOutcome = iota
	retrySuccess
	retryFailure
	retryStale
)

// NewFilesystemObserver returns the filesystem.Observer that records
// statistics file and image reads into the Filesystem* metrics.
func NewFilesystemObserver() filesystem.Observer {
	return &fileObserver{
		duration: FilesystemOperationDuration,
		errors:   FilesystemOperationErrors,
		retries: map[retryOutcome]*prometheus.CounterVec{
			retryAttempt: FilesystemRetryAttempts,
			retrySuccess: FilesystemRetrySuccess,
			retryFailure: FilesystemRetryFailures,
			retryStale:   FilesystemStaleErrors,
		},
		total: FilesystemRetryDuration,
	}
}

func volumeLabel(volume string) string {
	if volume == "" {
		return unresolvedVolume
	}
	return volume
}

func (o *fileObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	labels := prometheus.Labels{"volume": volumeLabel(volume), "operation": operation}
	o.duration.With(labels).Observe(durationSeconds)
	if err != nil {
		o.errors.With(labels).Inc()
	}
}

func (o *fileObserver) retry(outcome retryOutcome, op, volume string) {
	o.retries[outcome].WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (o *fileObserver) ObserveRetryAttempt(op, volume string) { o.retry(retryAttempt, op, volume) }
func (o *fileObserver) ObserveRetrySuccess(op, volume string) { o.retry(retrySuccess, op, volume) }
func (o *fileObserver) ObserveRetryFailure(op, volume string) { o.retry(retryFailure, op, volume) }
func (o *fileObserver) ObserveStaleError(op, volume string) { o.retry(retryStale, op, volume) }

func (o *fileObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	o.total.WithLabelValues(op, volumeLabel(volume)).Observe(durationSeconds)
}
