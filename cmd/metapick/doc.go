// Package main provides the entry point for the metapick command.
//
// metapick reads the generation parameters that AI image tools embed in
// PNG, JPEG, WebP and TIFF files, and keeps statistics about the models,
// prompt tags, image sizes and samplers it has seen.
//
// # Commands
//
//   - extract: walk paths, parse metadata, count new images, optionally
//     write NDJSON and update the SQLite catalog
//   - stats, export: show or export the statistics
//   - consolidate (--dry-run), suggest, fix, remove-tag, move-tags: clean up prompt tags
//   - remove-model, models: manage model counters and display names
//   - rename: rename images from their metadata
//   - clear: delete all statistics
//   - serve: JSON API, health checks and Prometheus metrics
//
// # Configuration
//
// Settings are read from flags, METAPICK_* environment variables and an
// optional metapick.yaml, in that order of precedence. See package startup
// for the keys.
package main
