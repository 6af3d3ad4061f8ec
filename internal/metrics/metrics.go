package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Extraction metrics
var (
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_extractions_total",
			Help: "Total number of raw metadata extractions by container and outcome",
		},
		[]string{"container", "status"}, // status: "success", "empty", "error"
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_extraction_duration_seconds",
			Help:    "Raw metadata extraction duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"container"},
	)

	WebPToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_webp_tool_invocations_total",
			Help: "Total number of external webpmux invocations by outcome",
		},
		[]string{"status"}, // "success", "error", "timeout", "fallback"
	)
)

// Parser metrics
var (
	ParserSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_parser_selections_total",
			Help: "Total number of records produced, by winning parser",
		},
		[]string{"parser"},
	)

	ParserErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_parser_errors_total",
			Help: "Total number of parser failures (errors and recovered panics) by parser and phase",
		},
		[]string{"parser", "phase"}, // phase: "detect", "parse"
	)

	ParserFieldsResolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metapick_parser_fields_resolved",
			Help:    "Number of resolved fields in the selected record",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 10, 12, 16, 20},
		},
	)
)

// Statistics store metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_ingest_total",
			Help: "Total number of ingestion attempts by outcome",
		},
		[]string{"status"}, // "ingested", "duplicate"
	)

	StatsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metapick_stats_cache_hits_total",
			Help: "Total number of aggregate cache hits",
		},
	)

	StatsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metapick_stats_cache_misses_total",
			Help: "Total number of aggregate cache misses",
		},
	)

	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_persist_duration_seconds",
			Help:    "Duration of statistics persistence operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"file"}, // "statistics", "mappings"
	)

	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_persist_errors_total",
			Help: "Total number of statistics persistence failures",
		},
		[]string{"file", "op"},
	)

	ConsolidationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_consolidation_runs_total",
			Help: "Total number of consolidation runs by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	StatsImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_stats_images_processed",
			Help: "Number of images recorded in the statistics store",
		},
	)

	StatsUniqueEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metapick_stats_unique_entries",
			Help: "Number of distinct counter keys by category",
		},
		[]string{"category"}, // "models", "positive", "negative", "dimensions", "samplers"
	)
)

// Batch pipeline metrics
var (
	BatchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metapick_batch_runs_total",
			Help: "Total number of batch extraction runs",
		},
	)

	BatchLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_batch_last_run_timestamp",
			Help: "Timestamp of the last batch run",
		},
	)

	BatchLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_batch_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)

	BatchFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metapick_batch_files_processed_total",
			Help: "Total number of files processed by batch runs",
		},
	)

	BatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metapick_batch_errors_total",
			Help: "Total number of batch errors",
		},
	)

	BatchWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_batch_workers",
			Help: "Number of workers in the current batch run",
		},
	)

	BatchIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_batch_running",
			Help: "Whether a batch run is in progress (1 = running, 0 = idle)",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metapick_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metapick_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metapick_db_records",
			Help: "Number of records in the catalog database",
		},
	)
)

// App info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metapick_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
