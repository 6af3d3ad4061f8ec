package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"metapick/internal/consolidate"
	"metapick/internal/logging"
	"metapick/internal/stats"
)

func consolidateCommand(a *app) *cobra.Command {
	var (
		rulesFile     string
		blacklistFile string
		renormalize   bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge tags by the consolidation rules and drop blacklisted tags",
		Long: `Apply the tag consolidation rules file, then remove every tag listed in the
blacklist file. With --renormalize, every tag is first normalized again so
variants written before the current rules are merged. With --dry-run, the
merges and removals are listed and nothing is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun && renormalize {
				return errors.New("--renormalize cannot be combined with --dry-run")
			}
			if rulesFile == "" {
				rulesFile = a.cfg.RulesPath
			}
			if blacklistFile == "" {
				blacklistFile = a.cfg.BlacklistPath
			}

			rules, err := consolidate.LoadRules(rulesFile)
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			blacklist, err := consolidate.LoadBlacklist(blacklistFile)
			if err != nil {
				return fmt.Errorf("failed to load blacklist: %w", err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				preview, err := store.PreviewConsolidation(rules, blacklist)
				var partial *consolidate.PartialFailureError
				if err != nil && !errors.As(err, &partial) {
					return err
				}
				printPreview(out, preview)
				return err
			}

			if renormalize {
				tc := store.ConsolidateTags()
				fmt.Fprintf(out, "Positive tags: %d -> %d\n", tc.PositiveBefore, tc.PositiveAfter)
				fmt.Fprintf(out, "Negative tags: %d -> %d\n", tc.NegativeBefore, tc.NegativeAfter)
			}

			result, applyErr := store.ApplyConsolidation(rules, blacklist)
			var partial *consolidate.PartialFailureError
			if applyErr != nil && !errors.As(applyErr, &partial) {
				return applyErr
			}
			fmt.Fprintf(out, "Consolidated: %d\n", result.Merged)
			fmt.Fprintf(out, "Blacklisted:  %d\n", result.Blacklisted)

			return errors.Join(applyErr, persist(store))
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "consolidation rules file (default from config)")
	cmd.Flags().StringVar(&blacklistFile, "blacklist", "", "tag blacklist file (default from config)")
	cmd.Flags().BoolVar(&renormalize, "renormalize", false, "normalize every tag again before applying rules")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would change without saving")

	return cmd
}

func printPreview(out io.Writer, preview consolidate.ChangePreview) {
	for _, r := range preview.Rules {
		if r.Total == 0 {
			continue
		}
		sources := make([]string, 0, len(r.Found))
		for _, f := range r.Found {
			sources = append(sources, fmt.Sprintf("%s (%d)", f.Key, f.Count))
		}
		fmt.Fprintf(out, "%s: %s <- %s: +%d = %d\n", r.Category, r.Target, strings.Join(sources, ", "), r.Total, r.Result)
	}
	for _, rm := range preview.Removals {
		fmt.Fprintf(out, "%s: remove %s (%d)\n", rm.Category, rm.Tag, rm.Count)
	}
	fmt.Fprintf(out, "Would consolidate: %d\n", preview.Merged)
	fmt.Fprintf(out, "Would blacklist:   %d\n", len(preview.Removals))
}

func suggestCommand(a *app) *cobra.Command {
	var (
		category  string
		minCount  int
		similar   string
		threshold float64
		worksheet string
		search    string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest tag consolidations",
		Long: `Group similar tags of a category and print the proposed merges.

  --similar TAG     list tags similar to TAG instead
  --search TEXT     list tags containing TEXT instead
  --worksheet FILE  also write a CSV worksheet for editing rules`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if worksheet != "" {
				if err := writeWorksheet(store, worksheet, category); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s worksheet to %s\n", category, worksheet)
			}

			switch {
			case similar != "":
				matches, err := store.SimilarTags(similar, category, threshold)
				if err != nil {
					return err
				}
				tw := newTable(out)
				fmt.Fprintln(tw, "TAG\tCOUNT\tSIMILARITY")
				for _, m := range matches {
					fmt.Fprintf(tw, "%s\t%d\t%.2f\n", m.Tag, m.Count, m.Similarity)
				}
				return tw.Flush()

			case search != "":
				counts, err := store.TagsMatching(search, category, false)
				if err != nil {
					return err
				}
				return printCounts(out, fmt.Sprintf("Tags containing %q", search), "TAG", counts)
			}

			suggestions, err := store.Suggestions(category, minCount)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "No suggestions")
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintf(out, "%s (%d): %s\n", s.Target, s.Count, strings.Join(s.Similar, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", consolidate.CategoryPositive, "tag category: positive or negative")
	cmd.Flags().IntVar(&minCount, "min-count", 0, "minimum occurrences (default from config)")
	cmd.Flags().StringVar(&similar, "similar", "", "list tags similar to this tag")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold for --similar (default from config)")
	cmd.Flags().StringVar(&search, "search", "", "list tags containing this text")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "write a CSV worksheet of the category to this file")

	return cmd
}

func writeWorksheet(store *stats.Store, path, category string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create worksheet: %w", err)
	}
	if err := store.ExportTags(f, category); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fixCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Move negative-looking tags out of the positive tags",
		Long: `Move every positive tag that contains a quality deny-list term such as
"lowres" or "bad anatomy" into the negative tags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			result := store.FixMisclassified()

			out := cmd.OutOrStdout()
			for _, m := range result.Moved {
				fmt.Fprintf(out, "moved %s (%d)\n", m.Tag, m.Count)
			}
			fmt.Fprintf(out, "Moved %d tags, %d occurrences\n", len(result.Moved), result.Occurrences)

			if len(result.Moved) == 0 {
				return nil
			}
			return persist(store)
		},
	}
}

func removeTagCommand(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "remove-tag TAG",
		Short: "Remove a tag from the statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			result, err := store.RemoveTag(args[0], category)
			if err != nil {
				return err
			}
			if !result.Removed {
				logging.Warn("Tag %q not found", args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Tag %q not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %q (%d occurrences) from %s\n",
				args[0], result.Count, strings.Join(result.Categories, ", "))
			return persist(store)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "positive or negative (default both)")

	return cmd
}

func moveTagsCommand(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "move-tags TAG...",
		Short: "Move tags between the positive and negative tags",
		Long: `Move each named tag with its whole count to the other tag category. The
count is added to any count the tag already has there.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := stats.CategoryPositive
			if to == stats.CategoryPositive {
				from = stats.CategoryNegative
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			result, err := store.MoveTags(args, from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range result.Moved {
				fmt.Fprintf(out, "moved %s (%d)\n", m.Tag, m.Count)
			}
			for _, tag := range result.Missing {
				logging.Warn("Tag %q not found in %s", tag, from)
				fmt.Fprintf(out, "not found: %s\n", tag)
			}
			fmt.Fprintf(out, "Moved %d tags to %s, %d occurrences\n", len(result.Moved), to, result.Occurrences)

			if len(result.Moved) == 0 {
				return nil
			}
			return persist(store)
		},
	}

	cmd.Flags().StringVar(&to, "to", stats.CategoryNegative, "destination category: positive or negative")

	return cmd
}
