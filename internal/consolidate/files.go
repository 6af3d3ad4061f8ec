package consolidate

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"metapick/internal/filesystem"
)

// Rules maps a category to target tags and the source tags merged into them.
//
//	{"positive": {"1girl": ["1 girl", "one girl"]}, "negative": {...}}
type Rules map[string]map[string][]string

// Blacklist maps a category to the tags removed from it.
//
//	{"positive": ["tag"], "negative": ["tag"]}
type Blacklist map[string][]string

// LoadRules reads a rules file. A missing file yields empty rules.
func LoadRules(path string) (Rules, error) {
	rules := Rules{}
	if err := loadJSON(path, &rules); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// SaveRules writes rules atomically.
func SaveRules(path string, rules Rules) error {
	return saveJSON(path, rules)
}

// LoadBlacklist reads a blacklist file. A missing file yields an empty list.
func LoadBlacklist(path string) (Blacklist, error) {
	bl := Blacklist{}
	if err := loadJSON(path, &bl); err != nil {
		return Blacklist{}, err
	}
	return bl, nil
}

// SaveBlacklist writes a blacklist atomically.
func SaveBlacklist(path string, bl Blacklist) error {
	return saveJSON(path, bl)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := filesystem.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteTagsCSV writes counters as a worksheet for authoring rules: one row
// per tag, highest count first, with its normalized form and its closest
// similar tags.
func WriteTagsCSV(w io.Writer, counters map[string]int, normalizeTag func(string) string, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Tag", "Count", "Normalized", "Suggestions"}); err != nil {
		return err
	}

	for _, entry := range SortedCounts(counters) {
		matches := Similar(counters, entry.Key, opts.Threshold)
		if opts.SuggestionLimit > 0 && len(matches) > opts.SuggestionLimit {
			matches = matches[:opts.SuggestionLimit]
		}
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Tag)
		}

		normalized := entry.Key
		if normalizeTag != nil {
			normalized = normalizeTag(entry.Key)
		}
		row := []string{entry.Key, strconv.Itoa(entry.Count), normalized, strings.Join(names, "; ")}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
