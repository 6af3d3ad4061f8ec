package metrics

// Label values shared between metric declarations and their callers.
var (
	Containers = []string{"png", "jpeg", "tiff", "webp", "unknown"}
	Parsers    = []string{"Automatic1111", "ComfyUI", "NovelAI", "GeneralAI", "unrecognized"}
	Categories = []string{"models", "positive", "negative", "dimensions", "samplers"}
	Volumes    = []string{"images", "data", "unknown"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, c := range Containers {
		ExtractionDuration.WithLabelValues(c)
		for _, status := range []string{"success", "empty", "error"} {
			ExtractionsTotal.WithLabelValues(c, status)
		}
	}

	for _, status := range []string{"success", "error", "timeout", "fallback"} {
		WebPToolInvocations.WithLabelValues(status)
	}

	for _, p := range Parsers {
		ParserSelections.WithLabelValues(p)
		ParserErrors.WithLabelValues(p, "detect")
		ParserErrors.WithLabelValues(p, "parse")
	}

	IngestTotal.WithLabelValues("ingested")
	IngestTotal.WithLabelValues("duplicate")

	for _, file := range []string{"statistics", "mappings"} {
		PersistDuration.WithLabelValues(file)
		for _, op := range []string{"marshal", "write", "backup", "rename", "read"} {
			PersistErrors.WithLabelValues(file, op)
		}
	}

	for _, kind := range []string{"rules", "blacklist", "fix", "move", "models", "tags"} {
		ConsolidationRunsTotal.WithLabelValues(kind, "success")
		ConsolidationRunsTotal.WithLabelValues(kind, "error")
	}

	for _, c := range Categories {
		StatsUniqueEntries.WithLabelValues(c)
	}

	// --- Filesystem operation and retry metrics (per volume × operation) ---
	for _, vol := range Volumes {
		for _, op := range []string{"read", "write", "stat", "open"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_records", "get_record",
		"list_records", "count_by_source", "delete_missing", "count_records",
		"begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
