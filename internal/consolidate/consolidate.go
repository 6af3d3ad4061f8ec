package consolidate

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"metapick/internal/normalize"
)

var (
	// ErrUnknownCategory is returned for a category other than positive or negative.
	ErrUnknownCategory = errors.New("unknown tag category")
	// ErrInvalidRule is returned for a rule with an empty target or source.
	ErrInvalidRule = errors.New("invalid consolidation rule")
)

// Tags holds the positive and negative tag counters.
type Tags struct {
	Positive map[string]int
	Negative map[string]int
}

// Category returns the counters for name.
func (t *Tags) Category(name string) (map[string]int, error) {
	switch name {
	case CategoryPositive:
		if t.Positive == nil {
			t.Positive = make(map[string]int)
		}
		return t.Positive, nil
	case CategoryNegative:
		if t.Negative == nil {
			t.Negative = make(map[string]int)
		}
		return t.Negative, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
}

func (t *Tags) set(name string, counters map[string]int) {
	switch name {
	case CategoryPositive:
		t.Positive = counters
	case CategoryNegative:
		t.Negative = counters
	}
}

// PartialFailureError reports categories that were committed and categories
// that failed. Failed categories are left untouched.
type PartialFailureError struct {
	Committed []string
	Failed    map[string]error
}

func (e *PartialFailureError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failed[name]))
	}
	return fmt.Sprintf("consolidation failed for %s (committed: %v)", strings.Join(parts, "; "), e.Committed)
}

func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// RulesResult summarizes an ApplyRules call.
type RulesResult struct {
	// Merged is the number of source entries folded into a target.
	Merged int
}

// ApplyRules merges source tags into their targets. Each category is applied
// to a copy and committed on its own, so an invalid rule in one category
// leaves the other category's result in place. The returned error is a
// *PartialFailureError when any category failed.
func ApplyRules(tags *Tags, rules Rules) (RulesResult, error) {
	var result RulesResult
	pf := &PartialFailureError{Failed: map[string]error{}}

	for _, name := range sortedKeys(rules) {
		current, err := tags.Category(name)
		if err != nil {
			pf.Failed[name] = err
			continue
		}

		working := maps.Clone(current)
		effects, err := applyCategory(working, rules[name])
		if err != nil {
			pf.Failed[name] = err
			continue
		}
		tags.set(name, working)
		for _, e := range effects {
			result.Merged += len(e.Found)
		}
		pf.Committed = append(pf.Committed, name)
	}

	if len(pf.Failed) > 0 {
		return result, pf
	}
	return result, nil
}

// RuleEffect is what one target's rule did to a category.
type RuleEffect struct {
	Category string `json:"category"`
	Target   string `json:"target"`
	// Found lists the sources present in the counters with their counts.
	Found []Count `json:"found"`
	// Total is the number of occurrences folded into Target.
	Total int `json:"total"`
	// Result is the target's count afterwards.
	Result int `json:"result"`
}

func applyCategory(counters map[string]int, rules map[string][]string) ([]RuleEffect, error) {
	effects := make([]RuleEffect, 0, len(rules))
	for _, target := range sortedKeys(rules) {
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("%w: empty target", ErrInvalidRule)
		}
		sources := rules[target]
		if len(sources) == 0 {
			return nil, fmt.Errorf("%w: target %q has no sources", ErrInvalidRule, target)
		}

		effect := RuleEffect{Target: target}
		for _, source := range sources {
			if strings.TrimSpace(source) == "" {
				return nil, fmt.Errorf("%w: empty source for target %q", ErrInvalidRule, target)
			}
			if n, ok := counters[source]; ok && source != target {
				effect.Found = append(effect.Found, Count{Key: source, Count: n})
				effect.Total += n
				delete(counters, source)
			}
		}
		if effect.Total > 0 {
			counters[target] += effect.Total
		}
		effect.Result = counters[target]
		effects = append(effects, effect)
	}
	return effects, nil
}

// ApplyBlacklist deletes every listed tag from its category and returns the
// number of entries removed. Unknown categories are reported through a
// *PartialFailureError; known categories are still applied.
func ApplyBlacklist(tags *Tags, blacklist Blacklist) (int, error) {
	removed := 0
	pf := &PartialFailureError{Failed: map[string]error{}}

	for _, name := range sortedKeys(blacklist) {
		counters, err := tags.Category(name)
		if err != nil {
			pf.Failed[name] = err
			continue
		}
		for _, tag := range blacklist[name] {
			if _, ok := counters[tag]; ok {
				delete(counters, tag)
				removed++
			}
		}
		pf.Committed = append(pf.Committed, name)
	}

	if len(pf.Failed) > 0 {
		return removed, pf
	}
	return removed, nil
}

// Match is a tag similar to a query tag.
type Match struct {
	Tag        string  `json:"tag"`
	Count      int     `json:"count"`
	Similarity float64 `json:"similarity"`
}

// Similar returns the tags whose similarity to tag is at least threshold,
// best match first. Tags equal to tag ignoring case are excluded.
func Similar(counters map[string]int, tag string, threshold float64) []Match {
	query := strings.ToLower(tag)
	var out []Match
	for candidate, count := range counters {
		lower := strings.ToLower(candidate)
		if lower == query {
			continue
		}
		if r := normalize.Ratio(query, lower); r >= threshold {
			out = append(out, Match{Tag: candidate, Count: count, Similarity: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Suggestion proposes merging Similar into Target.
type Suggestion struct {
	Target  string   `json:"target"`
	Count   int      `json:"count"`
	Similar []string `json:"similar"`
}

// Suggest groups similar tags greedily. Tags are visited by count, highest
// first; each unclaimed tag with at least minCount occurrences claims every
// other unclaimed tag of at least minCount whose similarity reaches the
// threshold. A tag belongs to at most one group.
func Suggest(counters map[string]int, minCount int, threshold float64) []Suggestion {
	ordered := SortedCounts(counters)
	claimed := make(map[string]bool, len(ordered))
	var out []Suggestion

	for _, entry := range ordered {
		if entry.Count < minCount || claimed[entry.Key] {
			continue
		}

		var group []string
		for _, m := range Similar(counters, entry.Key, threshold) {
			if claimed[m.Tag] || m.Count < minCount || m.Tag == entry.Key {
				continue
			}
			group = append(group, m.Tag)
			claimed[m.Tag] = true
		}

		if len(group) > 0 {
			claimed[entry.Key] = true
			out = append(out, Suggestion{Target: entry.Key, Count: entry.Count, Similar: group})
		}
	}
	return out
}

// Moved is one tag moved by FixMisclassified.
type Moved struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// FixResult summarizes a FixMisclassified call.
type FixResult struct {
	Moved       []Moved `json:"moved"`
	Occurrences int     `json:"occurrences"`
}

// FixMisclassified moves every positive tag that contains a deny-list term
// into the negative counters, carrying its whole count. Terms match as
// substrings, or only on word boundaries when wholeWords is set. Underscores
// and spaces are interchangeable. Running it twice moves nothing the second
// time.
func FixMisclassified(tags *Tags, denyList []string, wholeWords bool) FixResult {
	positive, _ := tags.Category(CategoryPositive)
	negative, _ := tags.Category(CategoryNegative)

	terms := make([]string, 0, len(denyList))
	for _, term := range denyList {
		if t := canonicalTerm(term); t != "" {
			terms = append(terms, t)
		}
	}

	var result FixResult
	for _, tag := range sortedKeys(positive) {
		if !containsAnyTerm(canonicalTerm(tag), terms, wholeWords) {
			continue
		}
		count := positive[tag]
		delete(positive, tag)
		negative[tag] += count
		result.Moved = append(result.Moved, Moved{Tag: tag, Count: count})
		result.Occurrences += count
	}
	return result
}

func canonicalTerm(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(s), "_", " ")), " ")
}

func containsAnyTerm(tag string, terms []string, wholeWords bool) bool {
	for _, term := range terms {
		if wholeWords && containsWord(tag, term) {
			return true
		}
		if !wholeWords && strings.Contains(tag, term) {
			return true
		}
	}
	return false
}

// containsWord reports whether term occurs in s with no letter or digit
// directly before or after it.
func containsWord(s, term string) bool {
	for offset := 0; offset <= len(s)-len(term); {
		i := strings.Index(s[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Count is one counter entry.
type Count struct {
	Key   string `json:"name"`
	Count int    `json:"count"`
}

// SortedCounts returns the entries of counters by count, highest first, with
// ties in key order.
func SortedCounts(counters map[string]int) []Count {
	out := make([]Count, 0, len(counters))
	for k, v := range counters {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
