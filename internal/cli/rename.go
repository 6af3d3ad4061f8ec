package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"metapick/internal/indexer"
	"metapick/internal/logging"
	"metapick/internal/parser"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
	"metapick/internal/rename"
)

func renameCommand(a *app) *cobra.Command {
	var (
		pattern string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "rename [path...]",
		Short: "Rename images from their generation metadata",
		Long: `Rename every supported image under the given paths using a pattern.
Placeholders: {title} {i} {stem} {model} {base_model} {model_hash} {vae}
{sampler} {scheduler} {source} {format} {steps} {cfg} {seed} {clip_skip}
{width} {height}. Integers accept a width such as {i:04d}, floats a
precision such as {cfg:.1f}. Files are numbered in path order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.configureVolumes(args)
			config := indexer.DefaultExtractorConfig()
			if a.cfg.Workers > 0 {
				config.NumWorkers = a.cfg.Workers
			}
			pe := indexer.NewParallelExtractor(rawmeta.New(a.cfg.LoaderOptions()), parser.DefaultChain(), config)

			var recs []*record.Record
			err := pe.Extract(ctx, args, func(r indexer.Result) {
				if r.Err != nil {
					logging.Warn("  %s: %v", r.Path, r.Err)
					return
				}
				recs = append(recs, r.Record)
			})
			if err != nil {
				return err
			}
			sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })

			moves := rename.Plan(recs, pattern)
			out := cmd.OutOrStdout()
			if dryRun {
				for _, m := range moves {
					fmt.Fprintf(out, "%s -> %s\n", m.Source, m.Target)
				}
				return nil
			}

			result, err := rename.Apply(moves)
			for _, m := range result.Renamed {
				fmt.Fprintf(out, "%s -> %s\n", m.Source, m.Target)
			}
			for _, s := range result.Skipped {
				fmt.Fprintf(out, "skipped %s (%s)\n", s.Move.Source, s.Reason)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", rename.DefaultPattern, "file name pattern")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the planned renames without renaming")

	return cmd
}
