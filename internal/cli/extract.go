package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"metapick/internal/database"
	"metapick/internal/indexer"
	"metapick/internal/logging"
	"metapick/internal/parser"
	"metapick/internal/rawmeta"
	"metapick/internal/startup"
	"metapick/internal/stats"
)

// progressEvery is how often, in files, extraction progress is logged.
const progressEvery = 100

type extractOptions struct {
	output        string
	prune         bool
	includeHidden bool
}

func extractCommand(a *app) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract [path...]",
		Short: "Extract metadata from images and update statistics",
		Long: `Walk the given files and directories, parse the generation metadata of
every supported image and count it into the statistics. Images seen
before are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `write records as NDJSON to this file ("-" for stdout)`)
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "remove catalog entries for images not seen in this run")
	cmd.Flags().BoolVar(&opts.includeHidden, "include-hidden", false, "also visit hidden files and directories")

	return cmd
}

// pipeline is everything a run needs. db is nil when the catalog is
// disabled.
type pipeline struct {
	store   *stats.Store
	db      *database.Database
	indexer *indexer.Indexer
}

func (p *pipeline) Close() {
	if p.db == nil {
		return
	}
	if err := p.db.Close(); err != nil {
		logging.Warn("failed to close catalog: %v", err)
	}
}

// newPipeline opens the store, the catalog and the indexer.
func (a *app) newPipeline(ctx context.Context) (*pipeline, error) {
	loadStart := time.Now()
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	startup.LogStatisticsLoaded(a.cfg.StatisticsPath, store.Summary().TotalImagesProcessed, time.Since(loadStart))

	p := &pipeline{store: store}
	if a.cfg.Catalog {
		dbStart := time.Now()
		p.db, err = database.New(ctx, a.cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		}
		initDuration := time.Since(dbStart)
		lastRun, err := p.db.GetLastRun(ctx)
		if err != nil {
			logging.Warn("failed to read last catalog run: %v", err)
		}
		startup.LogDatabaseInit(initDuration, lastRun)
	}

	loaderOpts := a.cfg.LoaderOptions()
	startup.LogExtractorInit(loaderOpts)
	p.indexer = indexer.New(rawmeta.New(loaderOpts), parser.DefaultChain(), store, p.db)
	return p, nil
}

func (a *app) runExtract(cmd *cobra.Command, roots []string, opts extractOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.configureVolumes(roots)
	p, err := a.newPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	runOpts := indexer.Options{
		Workers:       a.cfg.Workers,
		IncludeHidden: opts.includeHidden,
		Prune:         opts.prune,
	}

	switch opts.output {
	case "":
	case "-":
		runOpts.NDJSON = cmd.OutOrStdout()
	default:
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logging.Warn("failed to close %s: %v", opts.output, err)
			}
		}()
		runOpts.NDJSON = f
	}

	progress := make(chan indexer.Progress, progressEvery)
	runOpts.Progress = progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		logProgress(progress)
	}()

	result, err := p.indexer.Run(ctx, roots, runOpts)
	close(progress)
	<-done

	// NDJSON on stdout keeps the summary off stdout.
	out := cmd.OutOrStdout()
	if opts.output == "-" {
		out = cmd.ErrOrStderr()
	}
	printRunResult(out, result)
	return err
}

// logProgress logs every progressEvery-th event and every failure.
func logProgress(events <-chan indexer.Progress) {
	for ev := range events {
		if ev.Err != nil {
			logging.Warn("  %s: %v", ev.Path, ev.Err)
		}
		if ev.Done%progressEvery == 0 || ev.Done == ev.Total {
			logging.Info("  Progress: %d/%d files", ev.Done, ev.Total)
		}
	}
}

func printRunResult(w io.Writer, r indexer.RunResult) {
	fmt.Fprintf(w, "Processed:    %d\n", r.Processed)
	fmt.Fprintf(w, "Skipped:      %d\n", r.Skipped)
	fmt.Fprintf(w, "Unrecognized: %d\n", r.Unrecognized)
	fmt.Fprintf(w, "Errors:       %d\n", r.Errors)
	fmt.Fprintf(w, "Duration:     %v\n", r.Duration.Round(time.Millisecond))
}
