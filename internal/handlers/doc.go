// Package handlers provides HTTP request handlers for the metapick API.
//
// It includes handlers for:
//   - Statistics summaries and top-N counters
//   - Tag search, similar tags and consolidation suggestions
//   - Browsing the record catalog
//   - Health checks, version and Prometheus metrics
package handlers
