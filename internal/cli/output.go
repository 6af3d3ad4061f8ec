package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"metapick/internal/stats"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printCounts writes a ranked table of counts under a title.
func printCounts(w io.Writer, title, column string, counts []stats.Count) error {
	fmt.Fprintf(w, "%s\n", title)
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		fmt.Fprintln(w)
		return nil
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "  RANK\t%s\tCOUNT\n", column)
	for i, c := range counts {
		fmt.Fprintf(tw, "  %d\t%s\t%d\n", i+1, c.Key, c.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
