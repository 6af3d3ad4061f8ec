// Package indexer runs batch metadata extraction over directories of images.
//
// A ParallelExtractor collects the supported files under the given roots,
// then reads and parses them with a bounded pool of workers. Results are
// delivered one at a time to the caller, and progress events stream on an
// optional channel.
//
// The Indexer wraps the extractor for a complete run:
//   - recognized records are ingested into the statistics store
//   - every record is upserted into the catalog database, when configured
//   - records are optionally written as NDJSON
//   - the statistics file is saved when the run ends
//
// Hidden files and directories (prefixed with '.') are skipped unless
// requested. Stopping a run stops scheduling new files; files already
// being read finish first.
package indexer
