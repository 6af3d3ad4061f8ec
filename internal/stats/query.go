package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"metapick/internal/consolidate"
	"metapick/internal/metrics"
)

// Count is one counter entry.
type Count = consolidate.Count

// Counter categories accepted by Top.
const (
	CategoryModels     = "models"
	CategoryPositive   = consolidate.CategoryPositive
	CategoryNegative   = consolidate.CategoryNegative
	CategoryDimensions = "dimensions"
	CategorySamplers   = "samplers"
)

// Summary is a snapshot of the store.
type Summary struct {
	TotalImagesProcessed int        `json:"total_images_processed"`
	UniqueModels         int        `json:"unique_models"`
	UniquePositiveTags   int        `json:"unique_positive_tags"`
	UniqueNegativeTags   int        `json:"unique_negative_tags"`
	UniqueDimensions     int        `json:"unique_dimensions"`
	UniqueSamplers       int        `json:"unique_samplers"`
	TopModels            []Count    `json:"top_models"`
	TopPositiveTags      []Count    `json:"top_positive_tags"`
	TopNegativeTags      []Count    `json:"top_negative_tags"`
	TopDimensions        []Count    `json:"top_dimensions"`
	TopSamplers          []Count    `json:"top_samplers"`
	LastUpdate           *time.Time `json:"last_update"`
}

// cached returns the value stored under key, computing and storing it on a
// miss. compute runs with s.mu held. Cached values are shared between
// callers and must not be modified.
func (s *Store) cached(key string, compute func() any) any {
	if v, ok := s.cache.Get(key); ok {
		metrics.StatsCacheHits.Inc()
		return v
	}
	metrics.StatsCacheMisses.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := compute()
	s.cache.Set(key, v, cache.DefaultExpiration)
	return v
}

// counters returns the map for category. Callers hold s.mu.
func (s *Store) counters(category string) (map[string]int, error) {
	switch category {
	case CategoryModels:
		return s.models, nil
	case CategoryPositive:
		return s.positive, nil
	case CategoryNegative:
		return s.negative, nil
	case CategoryDimensions:
		return s.dimensions, nil
	case CategorySamplers:
		return s.samplers, nil
	default:
		return nil, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}
}

// Top returns the most frequent entries of category. A limit of zero
// returns every entry.
func (s *Store) Top(category string, limit int) ([]Count, error) {
	switch category {
	case CategoryModels, CategoryPositive, CategoryNegative, CategoryDimensions, CategorySamplers:
	default:
		return nil, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}
	return s.cached(fmt.Sprintf("top:%s:%d", category, limit), func() any {
		m, _ := s.counters(category)
		return topN(m, limit)
	}).([]Count), nil
}

func topN(m map[string]int, limit int) []Count {
	all := consolidate.SortedCounts(m)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// TopModels returns the most used models.
func (s *Store) TopModels(limit int) []Count {
	out, _ := s.Top(CategoryModels, limit)
	return out
}

// TopPositiveTags returns the most used positive prompt tags.
func (s *Store) TopPositiveTags(limit int) []Count {
	out, _ := s.Top(CategoryPositive, limit)
	return out
}

// TopNegativeTags returns the most used negative prompt tags.
func (s *Store) TopNegativeTags(limit int) []Count {
	out, _ := s.Top(CategoryNegative, limit)
	return out
}

// TopDimensions returns the most common image sizes.
func (s *Store) TopDimensions(limit int) []Count {
	out, _ := s.Top(CategoryDimensions, limit)
	return out
}

// TopSamplers returns the most used samplers.
func (s *Store) TopSamplers(limit int) []Count {
	out, _ := s.Top(CategorySamplers, limit)
	return out
}

// Summary returns totals and the top entries of every category.
func (s *Store) Summary() Summary {
	return s.cached("summary", func() any {
		sum := Summary{
			TotalImagesProcessed: s.total,
			UniqueModels:         len(s.models),
			UniquePositiveTags:   len(s.positive),
			UniqueNegativeTags:   len(s.negative),
			UniqueDimensions:     len(s.dimensions),
			UniqueSamplers:       len(s.samplers),
			TopModels:            topN(s.models, 10),
			TopPositiveTags:      topN(s.positive, 20),
			TopNegativeTags:      topN(s.negative, 20),
			TopDimensions:        topN(s.dimensions, 10),
			TopSamplers:          topN(s.samplers, 10),
		}
		if !s.lastUpdate.IsZero() {
			t := s.lastUpdate
			sum.LastUpdate = &t
		}
		return sum
	}).(Summary)
}

// TagsMatching returns the tags of category containing pattern, most
// frequent first.
func (s *Store) TagsMatching(pattern, category string, caseSensitive bool) ([]Count, error) {
	if !isTagCategory(category) {
		return nil, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}
	key := fmt.Sprintf("match:%s:%t:%s", category, caseSensitive, pattern)
	return s.cached(key, func() any {
		m, _ := s.counters(category)
		needle := pattern
		if !caseSensitive {
			needle = strings.ToLower(pattern)
		}
		matched := make(map[string]int)
		for tag, n := range m {
			hay := tag
			if !caseSensitive {
				hay = strings.ToLower(tag)
			}
			if strings.Contains(hay, needle) {
				matched[tag] = n
			}
		}
		return consolidate.SortedCounts(matched)
	}).([]Count), nil
}

// SimilarTags returns tags of category similar to tag. A threshold of zero
// uses the configured default.
func (s *Store) SimilarTags(tag, category string, threshold float64) ([]consolidate.Match, error) {
	if !isTagCategory(category) {
		return nil, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}
	if threshold <= 0 {
		threshold = s.opts.SimilarThreshold
	}
	key := fmt.Sprintf("similar:%s:%g:%s", category, threshold, tag)
	return s.cached(key, func() any {
		m, _ := s.counters(category)
		return consolidate.Similar(m, tag, threshold)
	}).([]consolidate.Match), nil
}

// Suggestions proposes consolidation groups for category. A minCount of
// zero uses the configured default.
func (s *Store) Suggestions(category string, minCount int) ([]consolidate.Suggestion, error) {
	if !isTagCategory(category) {
		return nil, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}
	if minCount <= 0 {
		minCount = s.opts.Consolidate.MinCount
	}
	key := fmt.Sprintf("suggest:%s:%d", category, minCount)
	return s.cached(key, func() any {
		m, _ := s.counters(category)
		return consolidate.Suggest(m, minCount, s.opts.Consolidate.Threshold)
	}).([]consolidate.Suggestion), nil
}

// CollectorStats reports counter sizes for the metrics collector.
func (s *Store) CollectorStats() metrics.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metrics.Stats{
		ImagesProcessed:  s.total,
		UniqueModels:     len(s.models),
		UniquePositive:   len(s.positive),
		UniqueNegative:   len(s.negative),
		UniqueDimensions: len(s.dimensions),
		UniqueSamplers:   len(s.samplers),
	}
}

// Processed reports whether identity has been recorded.
func (s *Store) Processed(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[identity]
	return ok
}

func isTagCategory(category string) bool {
	return category == CategoryPositive || category == CategoryNegative
}
