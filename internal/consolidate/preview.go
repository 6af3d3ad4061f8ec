package consolidate

import (
	"maps"
)

// Removal is a blacklisted tag that would be deleted.
type Removal struct {
	Category string `json:"category"`
	Tag      string `json:"tag"`
	Count    int    `json:"count"`
}

// ChangePreview describes what ApplyRules followed by ApplyBlacklist would
// do to a set of tags.
type ChangePreview struct {
	Rules    []RuleEffect `json:"rules"`
	Removals []Removal    `json:"removals"`
	// Merged matches RulesResult.Merged for the same input.
	Merged int `json:"consolidated_count"`
}

// Preview computes the effect of rules and then blacklist on tags without
// changing them. Blacklist removals are counted against the merged result,
// the same order ApplyRules and ApplyBlacklist run in. Invalid categories
// are reported through a *PartialFailureError and left out of the preview.
func Preview(tags *Tags, rules Rules, blacklist Blacklist) (ChangePreview, error) {
	work := &Tags{Positive: maps.Clone(tags.Positive), Negative: maps.Clone(tags.Negative)}
	preview := ChangePreview{Rules: []RuleEffect{}, Removals: []Removal{}}
	pf := &PartialFailureError{Failed: map[string]error{}}

	for _, name := range sortedKeys(rules) {
		current, err := work.Category(name)
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
		work.set(name, working)
		for _, e := range effects {
			e.Category = name
			preview.Merged += len(e.Found)
			preview.Rules = append(preview.Rules, e)
		}
		pf.Committed = append(pf.Committed, name)
	}

	for _, name := range sortedKeys(blacklist) {
		counters, err := work.Category(name)
		if err != nil {
			pf.Failed[name] = err
			continue
		}
		for _, tag := range blacklist[name] {
			n, ok := counters[tag]
			if !ok {
				continue
			}
			delete(counters, tag)
			preview.Removals = append(preview.Removals, Removal{Category: name, Tag: tag, Count: n})
		}
	}

	if len(pf.Failed) > 0 {
		return preview, pf
	}
	return preview, nil
}
