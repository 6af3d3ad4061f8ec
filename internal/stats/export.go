package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"metapick/internal/consolidate"
)

// Export writes the summary to path as JSON or CSV, chosen by extension.
func (s *Store) Export(path string) error {
	var write func(io.Writer, Summary) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		write = writeSummaryJSON
	case ".csv":
		write = writeSummaryCSV
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f, s.Summary()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write export file: %w", err)
	}
	return f.Close()
}

func writeSummaryJSON(w io.Writer, sum Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(sum)
}

func writeSummaryCSV(w io.Writer, sum Summary) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Summary"},
		{"Total Images Processed", strconv.Itoa(sum.TotalImagesProcessed)},
		{"Unique Models", strconv.Itoa(sum.UniqueModels)},
		{"Unique Positive Tags", strconv.Itoa(sum.UniquePositiveTags)},
		{"Unique Negative Tags", strconv.Itoa(sum.UniqueNegativeTags)},
		{"Unique Dimensions", strconv.Itoa(sum.UniqueDimensions)},
		{"Unique Samplers", strconv.Itoa(sum.UniqueSamplers)},
	}
	rows = appendSection(rows, "Top Models", "Model", sum.TopModels)
	rows = appendSection(rows, "Top Positive Tags", "Tag", sum.TopPositiveTags)
	rows = appendSection(rows, "Top Negative Tags", "Tag", sum.TopNegativeTags)
	rows = appendSection(rows, "Top Dimensions", "Dimensions", sum.TopDimensions)
	rows = appendSection(rows, "Top Samplers", "Sampler", sum.TopSamplers)

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func appendSection(rows [][]string, title, column string, counts []Count) [][]string {
	rows = append(rows, []string{}, []string{title}, []string{column, "Count"})
	for _, c := range counts {
		rows = append(rows, []string{c.Key, strconv.Itoa(c.Count)})
	}
	return rows
}

// ExportTags writes a CSV worksheet of category's tags for authoring
// consolidation rules.
func (s *Store) ExportTags(w io.Writer, category string) error {
	if !isTagCategory(category) {
		return fmt.Errorf("%w: %q", consolidate.ErrUnknownCategory, category)
	}

	s.mu.Lock()
	m, _ := s.counters(category)
	snapshot := make(map[string]int, len(m))
	for k, v := range m {
		snapshot[k] = v
	}
	s.mu.Unlock()

	return consolidate.WriteTagsCSV(w, snapshot, s.normalizer.Tag, s.opts.Consolidate)
}
