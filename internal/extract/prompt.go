package extract

import (
	"regexp"
	"strings"
)

// NegativeMarkers are checked in order; the first one present splits the
// text into positive and negative prompts.
var NegativeMarkers = []string{
	"Negative prompt:",
	"Negative:",
	"Neg prompt:",
	"Neg:",
	"Negative Prompt:",
}

var (
	loraBlockRe     = regexp.MustCompile(`(?i)<(?:lora|lyco|hypernet):[^>]+>`)
	weightedRe      = regexp.MustCompile(`\(([^():]*):\s*-?[0-9]*\.?[0-9]+\s*\)`)
	parenRe         = regexp.MustCompile(`\(([^()]*)\)`)
	repeatedCommaRe = regexp.MustCompile(`,(?:\s*,)+`)
	spaceRe         = regexp.MustCompile(`[ \t]+`)
)

// maxUnwrapDepth bounds nested (((tag))) unwrapping.
const maxUnwrapDepth = 16

// SplitPrompt separates positive and negative prompt text. Text before the
// first marker is positive; the first line after it is negative. Without a
// marker the whole text is positive.
func SplitPrompt(text string) (positive, negative string) {
	for _, marker := range NegativeMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		positive = strings.TrimSpace(text[:idx])
		rest := strings.TrimSpace(text[idx+len(marker):])
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		return positive, strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text), ""
}

// SplitA1111 is SplitPrompt for Automatic1111 "parameters" text: when no
// negative marker is present, a trailing "Steps: ..." line is not part of
// the positive prompt.
func SplitA1111(text string) (positive, negative string) {
	positive, negative = SplitPrompt(text)
	if negative != "" || positive == "" {
		return positive, negative
	}
	if idx := strings.LastIndex(positive, "\n"); idx >= 0 {
		if strings.HasPrefix(strings.TrimSpace(positive[idx+1:]), "Steps:") {
			return strings.TrimSpace(positive[:idx]), ""
		}
	} else if strings.HasPrefix(positive, "Steps:") {
		return "", ""
	}
	return positive, ""
}

// ParameterBlock returns the "Steps: ..." settings line of Automatic1111
// text, or the whole text when there is none.
func ParameterBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "Steps:") {
			return strings.Join(lines[i:], "\n")
		}
	}
	return text
}

// StripWeights unwraps (tag:1.2) and (tag) emphasis syntax, including
// nested forms.
func StripWeights(text string) string {
	for i := 0; i < maxUnwrapDepth; i++ {
		next := weightedRe.ReplaceAllString(text, "$1")
		next = parenRe.ReplaceAllString(next, "$1")
		if next == text {
			break
		}
		text = next
	}
	return text
}

// RemoveLoRA deletes <lora:...>, <lyco:...> and <hypernet:...> blocks.
func RemoveLoRA(text string) string {
	return loraBlockRe.ReplaceAllString(text, "")
}

// CleanPrompt returns the canonical prompt text: network blocks removed,
// emphasis unwrapped, empty list entries collapsed and leading or trailing
// separators trimmed.
func CleanPrompt(text string) string {
	text = RemoveLoRA(text)
	text = StripWeights(text)
	text = repeatedCommaRe.ReplaceAllString(text, ",")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = spaceRe.ReplaceAllString(line, " ")
		line = strings.Trim(line, " ,")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
