// Package record defines the canonical generation-parameter record shared by
// the parsers, the statistics store, the catalog and the rename planner.
package record
