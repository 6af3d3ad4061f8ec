// Package metrics provides Prometheus instrumentation for metapick.
//
// All metrics are prefixed with "metapick_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## Extraction Metrics
//
//   - ExtractionsTotal: raw metadata extractions by container and outcome
//   - ExtractionDuration: extraction latency by container
//   - WebPToolInvocations: webpmux subprocess calls by outcome
//
// ## Parser Metrics
//
//   - ParserSelections: winning parser per record ("unrecognized" for stubs)
//   - ParserErrors: errors and recovered panics by parser and phase
//   - ParserFieldsResolved: field count of the selected record
//
// ## Statistics Store Metrics
//
//   - IngestTotal: ingestion attempts, "ingested" or "duplicate"
//   - StatsCacheHits / StatsCacheMisses: aggregate query cache
//   - PersistDuration / PersistErrors: statistics and mapping file writes
//   - ConsolidationRunsTotal: maintenance runs by kind and outcome
//   - StatsImagesTotal / StatsUniqueEntries: gauges refreshed by [Collector]
//
// ## Batch, Database, Filesystem and HTTP Metrics
//
// Batch* metrics track extraction runs. DB* metrics time every catalog
// query. Filesystem* metrics are fed through the observer returned by
// [NewFilesystemObserver]. HTTP* metrics are recorded by the middleware
// package.
//
// # Usage
//
//	collector := metrics.NewCollector(store, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// Example PromQL:
//
//	sum(rate(metapick_parser_selections_total[5m])) by (parser)
//
//	rate(metapick_stats_cache_hits_total[5m]) /
//	(rate(metapick_stats_cache_hits_total[5m]) + rate(metapick_stats_cache_misses_total[5m]))
package metrics
