package normalize

import (
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Normalizer canonicalizes tags and model names. Results are memoized in
// capped tables; it is safe for concurrent use.
type Normalizer struct {
	opts Options

	mu        sync.Mutex
	tagMemo   map[string]string
	modelMemo map[string]string
	// known maps the key of every model display name produced so far to
	// that display name.
	known    map[string]string
	mappings map[string]string
}

// New returns a Normalizer using opts.
func New(opts Options) *Normalizer {
	return &Normalizer{
		opts:      opts,
		tagMemo:   make(map[string]string),
		modelMemo: make(map[string]string),
		known:     make(map[string]string),
		mappings:  make(map[string]string),
	}
}

// Tag returns the canonical form of one tag: lowercase with collapsed
// whitespace, replaced by its synonym when one exists, else underscored
// when it matches one of the underscore patterns.
func (n *Normalizer) Tag(raw string) string {
	if raw == "" {
		return ""
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if v, ok := n.tagMemo[raw]; ok {
		return v
	}
	v := n.tag(raw)
	n.remember(n.tagMemo, raw, v)
	return v
}

func (n *Normalizer) tag(raw string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if v, ok := n.opts.TagSynonyms[normalized]; ok {
		return v
	}
	if strings.Contains(normalized, " ") {
		underscored := strings.ReplaceAll(normalized, " ", "_")
		for _, p := range n.opts.UnderscorePatterns {
			if strings.Contains(underscored, p) {
				return underscored
			}
		}
	}
	return normalized
}

// Tags normalizes every tag and drops duplicates, keeping first-seen order.
func (n *Normalizer) Tags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		v := n.Tag(t)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Model returns the display name for a model path or name. A mapping set
// with SetMappings wins outright. Otherwise the name is cleaned, and a
// cleaned name whose key contains, or is contained in, the key of a model
// seen earlier reuses that model's display name.
func (n *Normalizer) Model(name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if v, ok := n.mappings[name]; ok {
		return v
	}
	if v, ok := n.modelMemo[name]; ok {
		return v
	}

	display := CleanModelName(name, n.opts)
	if display != UnknownModel {
		display = n.alias(display)
	}
	n.remember(n.modelMemo, name, display)
	return display
}

// alias returns the display name of a known model matching clean, or
// records clean as a new known model.
func (n *Normalizer) alias(clean string) string {
	key := ModelKey(clean)
	if key == "" {
		return clean
	}
	if v, ok := n.known[key]; ok {
		return v
	}
	if len(key) >= n.opts.MinAliasKeyLength {
		keys := make([]string, 0, len(n.known))
		for k := range n.known {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if len(k) < n.opts.MinAliasKeyLength {
				continue
			}
			if strings.Contains(k, key) || strings.Contains(key, k) {
				v := n.known[k]
				n.known[key] = v
				return v
			}
		}
	}
	n.known[key] = clean
	return clean
}

// SetMappings replaces the override table. Memoized model names are
// discarded so the new table applies to every later call.
func (n *Normalizer) SetMappings(m map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mappings = make(map[string]string, len(m))
	for k, v := range m {
		n.mappings[k] = v
	}
	clear(n.modelMemo)
}

// Reset forgets every memoized value and known model.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	clear(n.tagMemo)
	clear(n.modelMemo)
	clear(n.known)
}

func (n *Normalizer) remember(memo map[string]string, k, v string) {
	if len(memo) < n.opts.MemoLimit {
		memo[k] = v
	}
}

// CleanModelName applies the algorithmic part of model normalization:
// basename, then at most one extension, one prefix and one suffix removed,
// then underscores turned into spaces and whitespace collapsed.
func CleanModelName(name string, opts Options) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownModel
	}

	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = trimSuffixFold(name, opts.ModelExtensions)
	name = trimPrefixFold(name, opts.ModelPrefixes)
	name = trimSuffixFold(name, opts.ModelSuffixes)

	name = strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), " ")
	if name == "" || name == "." || name == "/" {
		return UnknownModel
	}
	return name
}

// trimPrefixFold removes the first prefix that matches case-insensitively.
func trimPrefixFold(s string, prefixes []string) string {
	for _, p := range prefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return s[len(p):]
		}
	}
	return s
}

// trimSuffixFold removes the first suffix that matches case-insensitively.
func trimSuffixFold(s string, suffixes []string) string {
	for _, x := range suffixes {
		if len(s) >= len(x) && strings.EqualFold(s[len(s)-len(x):], x) {
			return s[:len(s)-len(x)]
		}
	}
	return s
}

// ModelKey reduces a model name to its lowercase letters and digits.
func ModelKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
