package stats

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"metapick/internal/consolidate"
	"metapick/internal/logging"
	"metapick/internal/metrics"
)

// ConsolidationResult summarizes ApplyConsolidation.
type ConsolidationResult struct {
	Merged      int `json:"consolidated_count"`
	Blacklisted int `json:"blacklisted_count"`
}

// RemoveResult summarizes RemoveTag and RemoveModel.
type RemoveResult struct {
	Removed    bool     `json:"removed"`
	Count      int      `json:"count"`
	Categories []string `json:"categories,omitempty"`
}

// ModelConsolidation summarizes ConsolidateModelNames.
type ModelConsolidation struct {
	Before  int      `json:"models_before"`
	After   int      `json:"models_after"`
	Changes []string `json:"changes"`
}

// TagConsolidation summarizes ConsolidateTags.
type TagConsolidation struct {
	PositiveBefore int `json:"positive_before"`
	PositiveAfter  int `json:"positive_after"`
	NegativeBefore int `json:"negative_before"`
	NegativeAfter  int `json:"negative_after"`
}

func recordRun(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ConsolidationRunsTotal.WithLabelValues(kind, status).Inc()
}

// ApplyConsolidation merges tags by rules and then deletes blacklisted tags.
// Categories are committed independently; a failure in one is reported as a
// *consolidate.PartialFailureError while the other is kept.
func (s *Store) ApplyConsolidation(rules consolidate.Rules, blacklist consolidate.Blacklist) (ConsolidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := &consolidate.Tags{Positive: s.positive, Negative: s.negative}

	merged, rulesErr := consolidate.ApplyRules(tags, rules)
	recordRun("rules", rulesErr)
	removed, blErr := consolidate.ApplyBlacklist(tags, blacklist)
	recordRun("blacklist", blErr)

	s.positive = tags.Positive
	s.negative = tags.Negative
	s.touch()

	result := ConsolidationResult{Merged: merged.Merged, Blacklisted: removed}
	logging.Info("Consolidation merged %d tags and removed %d blacklisted tags", result.Merged, result.Blacklisted)
	return result, errors.Join(rulesErr, blErr)
}

// PreviewConsolidation reports what ApplyConsolidation would do without
// changing the store.
func (s *Store) PreviewConsolidation(rules consolidate.Rules, blacklist consolidate.Blacklist) (consolidate.ChangePreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return consolidate.Preview(&consolidate.Tags{Positive: s.positive, Negative: s.negative}, rules, blacklist)
}

// MoveResult summarizes MoveTags.
type MoveResult struct {
	Moved       []consolidate.Moved `json:"moved"`
	Missing     []string            `json:"missing,omitempty"`
	Occurrences int                 `json:"occurrences"`
}

// MoveTags moves each named tag with its whole count from one tag category
// to the other, adding to any count the tag already has there. Tags absent
// from the source category are reported in Missing.
func (s *Store) MoveTags(tags []string, from, to string) (MoveResult, error) {
	for _, category := range []string{from, to} {
		if !isTagCategory(category) {
			return MoveResult{}, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
		}
	}
	if from == to {
		return MoveResult{}, fmt.Errorf("cannot move tags from %s to itself", from)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, _ := s.counters(from)
	dst, _ := s.counters(to)

	var result MoveResult
	for _, tag := range tags {
		n, ok := src[tag]
		if !ok {
			result.Missing = append(result.Missing, tag)
			continue
		}
		delete(src, tag)
		dst[tag] += n
		result.Moved = append(result.Moved, consolidate.Moved{Tag: tag, Count: n})
		result.Occurrences += n
	}
	recordRun("move", nil)

	if len(result.Moved) > 0 {
		s.touch()
		logging.Info("Moved %d tags (%d occurrences) from %s to %s", len(result.Moved), result.Occurrences, from, to)
	}
	return result, nil
}

// FixMisclassified moves positive tags that match the deny list into the
// negative counters.
func (s *Store) FixMisclassified() consolidate.FixResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := &consolidate.Tags{Positive: s.positive, Negative: s.negative}
	result := consolidate.FixMisclassified(tags, s.opts.Consolidate.DenyList, s.opts.Consolidate.WholeWords)
	s.positive = tags.Positive
	s.negative = tags.Negative
	recordRun("fix", nil)

	if len(result.Moved) > 0 {
		s.touch()
		logging.Info("Moved %d misclassified tags (%d occurrences) to negative", len(result.Moved), result.Occurrences)
	}
	return result
}

// RemoveTag deletes tag from category, or from both tag categories when
// category is empty.
func (s *Store) RemoveTag(tag, category string) (RemoveResult, error) {
	categories := []string{CategoryPositive, CategoryNegative}
	if category != "" {
		if !isTagCategory(category) {
			return RemoveResult{}, fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
		}
		categories = []string{category}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result RemoveResult
	for _, name := range categories {
		m, _ := s.counters(name)
		if n, ok := m[tag]; ok {
			delete(m, tag)
			result.Count += n
			result.Categories = append(result.Categories, name)
		}
	}
	if result.Count > 0 {
		result.Removed = true
		s.touch()
		logging.Info("Removed tag %q (%d occurrences) from %v", tag, result.Count, result.Categories)
	}
	return result, nil
}

// RemoveModel deletes a model entry.
func (s *Store) RemoveModel(name string) RemoveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.models[name]
	if !ok {
		return RemoveResult{}
	}
	delete(s.models, name)
	s.touch()
	logging.Info("Removed model %q (%d occurrences)", name, n)
	return RemoveResult{Removed: true, Count: n, Categories: []string{CategoryModels}}
}

// ConsolidateModelNames renormalizes every model entry, merging entries
// that now share a display name.
func (s *Store) ConsolidateModelNames() ModelConsolidation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := ModelConsolidation{Before: len(s.models)}
	merged := make(map[string]int, len(s.models))
	for _, name := range sortedNames(s.models) {
		display := s.normalizer.Model(name)
		merged[display] += s.models[name]
		if display != name {
			result.Changes = append(result.Changes, name+" -> "+display)
		}
	}
	s.models = merged
	result.After = len(merged)
	s.touch()
	recordRun("models", nil)

	logging.Info("Model names: %d -> %d (%d changes)", result.Before, result.After, len(result.Changes))
	return result
}

// ConsolidateTags renormalizes every tag, merging tags that now share a
// canonical form.
func (s *Store) ConsolidateTags() TagConsolidation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := TagConsolidation{PositiveBefore: len(s.positive), NegativeBefore: len(s.negative)}
	s.positive = s.renormalize(s.positive)
	s.negative = s.renormalize(s.negative)
	result.PositiveAfter = len(s.positive)
	result.NegativeAfter = len(s.negative)
	s.touch()
	recordRun("tags", nil)

	logging.Info("Positive tags: %d -> %d, negative tags: %d -> %d",
		result.PositiveBefore, result.PositiveAfter, result.NegativeBefore, result.NegativeAfter)
	return result
}

func (s *Store) renormalize(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for tag, n := range m {
		canonical := s.normalizer.Tag(tag)
		if canonical == "" {
			canonical = tag
		}
		out[canonical] += n
	}
	return out
}

// Clear drops every counter and processed identity. Model mappings are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.normalizer.Reset()
	s.cache.Flush()
	logging.Info("Statistics cleared")
}

// SetModelMapping maps an original model name to a display name and saves
// the mapping file.
func (s *Store) SetModelMapping(original, display string) error {
	if original == "" || display == "" {
		return fmt.Errorf("model mapping needs both names")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := maps.Clone(s.mappings)
	s.mappings[original] = display
	if err := s.saveMappings(); err != nil {
		s.mappings = previous
		return err
	}
	s.normalizer.SetMappings(s.mappings)
	s.cache.Flush()
	return nil
}

// RemoveModelMapping deletes a mapping and saves the mapping file. It
// reports whether the mapping existed.
func (s *Store) RemoveModelMapping(original string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[original]; !ok {
		return false, nil
	}
	previous := maps.Clone(s.mappings)
	delete(s.mappings, original)
	if err := s.saveMappings(); err != nil {
		s.mappings = previous
		return false, err
	}
	s.normalizer.SetMappings(s.mappings)
	s.cache.Flush()
	return true, nil
}

// ModelMappings returns a copy of the mapping table.
func (s *Store) ModelMappings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.mappings)
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
