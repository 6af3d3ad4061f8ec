package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinTagLength is the shortest tag, in runes, SplitTags keeps.
const MinTagLength = 3

// Stopwords are connecting words that never count as tags.
var Stopwords = map[string]struct{}{
	"and": {}, "the": {}, "with": {}, "for": {}, "from": {},
	"are": {}, "was": {}, "were": {}, "been": {}, "have": {},
	"has": {}, "had": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "must": {},
	"very": {}, "too": {}, "also": {}, "just": {}, "only": {},
}

var (
	bracketRe  = regexp.MustCompile(`[<>\[\]{}]`)
	tagSplitRe = regexp.MustCompile(`[,\n]+`)
)

// SplitTags breaks a prompt into distinct tags, in first-seen order. Network
// blocks, emphasis and bracket syntax are removed first; fragments shorter
// than MinTagLength and stopwords are dropped. Tags are not normalized.
func SplitTags(prompt string) []string {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	text := StripWeights(RemoveLoRA(prompt))
	text = bracketRe.ReplaceAllString(text, "")

	seen := make(map[string]struct{})
	var tags []string
	for _, part := range tagSplitRe.Split(text, -1) {
		tag := strings.TrimSpace(part)
		if utf8.RuneCountInString(tag) < MinTagLength {
			continue
		}
		if _, stop := Stopwords[strings.ToLower(tag)]; stop {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
