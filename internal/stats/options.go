package stats

import (
	"path/filepath"
	"time"

	"metapick/internal/consolidate"
	"metapick/internal/normalize"
)

// Default file names inside the data directory.
const (
	StatisticsFile = "metapick_statistics.json"
	MappingsFile   = "model_name_mappings.json"
)

// Options configures a Store.
type Options struct {
	// Path is the statistics file. Empty disables Persist and Load.
	Path string
	// MappingsPath is the model-name mapping file. Empty keeps mappings in
	// memory only.
	MappingsPath string
	// CacheTTL bounds how long an aggregate query result is reused.
	CacheTTL time.Duration
	// SimilarThreshold is the default similarity for SimilarTags.
	SimilarThreshold float64

	Normalize   normalize.Options
	Consolidate consolidate.Options
}

// DefaultOptions returns options that keep both files in dataDir.
func DefaultOptions(dataDir string) Options {
	opts := Options{
		CacheTTL:         300 * time.Second,
		SimilarThreshold: 0.7,
		Normalize:        normalize.DefaultOptions(),
		Consolidate:      consolidate.DefaultOptions(),
	}
	if dataDir != "" {
		opts.Path = filepath.Join(dataDir, StatisticsFile)
		opts.MappingsPath = filepath.Join(dataDir, MappingsFile)
	}
	return opts
}
