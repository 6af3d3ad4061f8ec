package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"metapick/internal/stats"
)

func statsCommand(a *app) *cobra.Command {
	var (
		limit    int
		asJSON   bool
		category string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics",
		Long: `Show the number of processed images and the most common models, prompt
tags, sizes and samplers. With --category only that counter is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if category != "" {
				counts, err := store.Top(category, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, counts)
				}
				return printCounts(out, "Top "+category, "ENTRY", counts)
			}

			if asJSON {
				return printJSON(out, store.Summary())
			}
			return printSummary(out, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "number of entries per list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVarP(&category, "category", "c", "", "list one counter: models, positive, negative, dimensions, samplers")

	return cmd
}

func printSummary(w io.Writer, store *stats.Store, limit int) error {
	sum := store.Summary()

	fmt.Fprintln(w, "Statistics")
	fmt.Fprintln(w, "==========")
	tw := newTable(w)
	fmt.Fprintf(tw, "Images processed:\t%d\n", sum.TotalImagesProcessed)
	fmt.Fprintf(tw, "Unique models:\t%d\n", sum.UniqueModels)
	fmt.Fprintf(tw, "Unique positive tags:\t%d\n", sum.UniquePositiveTags)
	fmt.Fprintf(tw, "Unique negative tags:\t%d\n", sum.UniqueNegativeTags)
	fmt.Fprintf(tw, "Unique sizes:\t%d\n", sum.UniqueDimensions)
	fmt.Fprintf(tw, "Unique samplers:\t%d\n", sum.UniqueSamplers)
	if sum.LastUpdate != nil {
		fmt.Fprintf(tw, "Last update:\t%s\n", sum.LastUpdate.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	sections := []struct {
		title, column string
		counts        []stats.Count
	}{
		{"Top models", "MODEL", store.TopModels(limit)},
		{"Top positive tags", "TAG", store.TopPositiveTags(limit)},
		{"Top negative tags", "TAG", store.TopNegativeTags(limit)},
		{"Top sizes", "SIZE", store.TopDimensions(limit)},
		{"Top samplers", "SAMPLER", store.TopSamplers(limit)},
	}
	for _, s := range sections {
		if err := printCounts(w, s.title, s.column, s.counts); err != nil {
			return err
		}
	}
	return nil
}

func exportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export the statistics summary as JSON or CSV",
		Long:  `Write the statistics summary to FILE. The format follows the extension: .json or .csv.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.Export(args[0]); err != nil {
				if errors.Is(err, stats.ErrUnsupportedFormat) {
					return fmt.Errorf("%w (use .json or .csv)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported statistics to %s\n", args[0])
			return nil
		},
	}
}

// errNotConfirmed is returned by destructive commands run without --yes.
var errNotConfirmed = errors.New("refusing to continue without --yes")

func clearCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all statistics",
		Long: `Delete every counter and processed image record. Model name mappings are
kept. The previous statistics file is kept as a .bak file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			store.Clear()
			if err := persist(store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Statistics cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting all statistics")

	return cmd
}
