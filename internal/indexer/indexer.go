package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"metapick/internal/database"
	"metapick/internal/logging"
	"metapick/internal/metrics"
	"metapick/internal/parser"
	"metapick/internal/rawmeta"
	"metapick/internal/stats"
)

// Number of records to collect before committing a catalog batch
const batchSize = 500

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("extraction already running")

// Options configures one extraction run.
type Options struct {
	// Workers is the worker pool size (0 = auto).
	Workers int
	// IncludeHidden also visits files and directories starting with ".".
	IncludeHidden bool
	// NDJSON, when set, receives one JSON record per processed file.
	NDJSON io.Writer
	// Progress receives progress events. See ExtractorConfig.Progress.
	Progress chan<- Progress
	// Prune deletes catalog rows that this run did not refresh.
	Prune bool
}

// RunResult summarizes one extraction run.
type RunResult struct {
	// Processed counts images newly added to the statistics.
	Processed int `json:"processed"`
	// Skipped counts images whose identity had been counted before.
	Skipped int `json:"skipped"`
	// Unrecognized counts images without recognizable generation metadata.
	Unrecognized int           `json:"unrecognized"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"duration"`
}

// Indexer drives extraction runs and feeds the statistics store and the
// optional catalog database.
type Indexer struct {
	loader *rawmeta.Loader
	chain  *parser.Chain
	store  *stats.Store
	db     *database.Database

	mu         sync.Mutex
	running    bool
	current    *ParallelExtractor
	lastRun    time.Time
	lastResult *RunResult
	lastErr    error
	startTime  time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates an Indexer. db may be nil to skip the catalog.
func New(loader *rawmeta.Loader, chain *parser.Chain, store *stats.Store, db *database.Database) *Indexer {
	return &Indexer{
		loader:    loader,
		chain:     chain,
		store:     store,
		db:        db,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// Run extracts metadata from every supported image under roots. Each
// recognized record is ingested into the statistics store, written to the
// catalog and to opts.NDJSON. The store is persisted at the end, also
// after a cancelled run.
func (idx *Indexer) Run(ctx context.Context, roots []string, opts Options) (RunResult, error) {
	if !idx.tryStart() {
		return RunResult{}, ErrAlreadyRunning
	}

	metrics.BatchIsRunning.Set(1)
	defer metrics.BatchIsRunning.Set(0)
	metrics.BatchRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting extraction of %d root(s)...", len(roots))

	pe := NewParallelExtractor(idx.loader, idx.chain, ExtractorConfig{
		NumWorkers: workersFor(opts.Workers),
		SkipHidden: !opts.IncludeHidden,
		Progress:   opts.Progress,
	})
	idx.mu.Lock()
	idx.current = pe
	idx.mu.Unlock()

	var (
		result    RunResult
		batch     = make([]database.StoredRecord, 0, batchSize)
		batchErr  error
		ndjson    = opts.NDJSON
		ndjsonErr error
	)

	flush := func() {
		if idx.db == nil || len(batch) == 0 {
			return
		}
		if err := idx.db.UpsertRecords(context.WithoutCancel(ctx), batch); err != nil {
			logging.Error("Failed to store %d records: %v", len(batch), err)
			batchErr = errors.Join(batchErr, err)
		}
		batch = batch[:0]
	}

	handle := func(res Result) {
		if res.Err != nil {
			result.Errors++
			metrics.BatchErrors.Inc()
			logging.Warn("Failed to process %s: %v", res.Path, res.Err)
			return
		}
		metrics.BatchFilesProcessed.Inc()
		rec := res.Record

		if ndjson != nil {
			if err := WriteNDJSON(ndjson, rec); err != nil {
				ndjsonErr = fmt.Errorf("write records: %w", err)
				ndjson = nil
			}
		}

		if idx.db != nil {
			batch = append(batch, database.StoredRecord{Identity: idx.store.Identity(res.Path, rec), Record: rec})
			if len(batch) >= batchSize {
				flush()
			}
		}

		if rec.Unrecognized {
			result.Unrecognized++
			return
		}

		switch err := idx.store.Ingest(res.Path, rec); {
		case errors.Is(err, stats.ErrAlreadyProcessed):
			result.Skipped++
		case err != nil:
			result.Errors++
			logging.Warn("Failed to ingest %s: %v", res.Path, err)
		default:
			result.Processed++
		}
	}

	runErr := pe.Extract(ctx, roots, handle)
	flush()

	if opts.Prune && runErr == nil && batchErr == nil && idx.db != nil {
		if removed, err := idx.db.DeleteMissing(ctx, startTime); err != nil {
			logging.Error("Error cleaning up missing records: %v", err)
			batchErr = err
		} else if removed > 0 {
			logging.Info("Removed %d catalog records for missing files", removed)
		}
	}

	persistErr := idx.store.Persist()
	if persistErr != nil {
		logging.Error("Failed to save statistics: %v", persistErr)
	}

	if idx.db != nil {
		if err := idx.db.SetLastRun(context.WithoutCancel(ctx), time.Now()); err != nil {
			logging.Warn("Failed to record last run time: %v", err)
		}
	}

	result.Duration = time.Since(startTime)
	metrics.BatchLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.BatchLastRunDuration.Set(result.Duration.Seconds())

	logging.Info("Extraction finished in %v: %d new, %d already counted, %d unrecognized, %d errors",
		result.Duration, result.Processed, result.Skipped, result.Unrecognized, result.Errors)

	err := errors.Join(runErr, batchErr, ndjsonErr, persistErr)
	idx.finish(result, err)
	return result, err
}

func workersFor(n int) int {
	if n > 0 {
		return n
	}
	return DefaultExtractorConfig().NumWorkers
}

func (idx *Indexer) tryStart() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.running {
		return false
	}
	idx.running = true
	return true
}

func (idx *Indexer) finish(result RunResult, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.running = false
	idx.current = nil
	idx.lastRun = time.Now()
	idx.lastResult = &result
	idx.lastErr = err
}

// Start runs an initial extraction in the background and repeats it every
// interval. A zero interval runs once.
func (idx *Indexer) Start(roots []string, opts Options, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-idx.stopChan
		cancel()
	}()

	go func() {
		logging.Info("Starting initial extraction in background...")
		idx.runLogged(ctx, roots, opts)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logging.Debug("Periodic extraction triggered")
				idx.runLogged(ctx, roots, opts)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (idx *Indexer) runLogged(ctx context.Context, roots []string, opts Options) {
	if _, err := idx.Run(ctx, roots, opts); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, ErrAlreadyRunning) {
			logging.Info("Extraction already in progress, skipping...")
			return
		}
		logging.Error("Extraction failed: %v", err)
	}
}

// Stop cancels the current run and the background schedule.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.current != nil {
		idx.current.Stop()
	}
}

// IsRunning reports whether a run is in progress.
func (idx *Indexer) IsRunning() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.running
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready      bool       `json:"ready"`
	Running    bool       `json:"running"`
	StartTime  time.Time  `json:"startTime"`
	Uptime     string     `json:"uptime"`
	LastRun    time.Time  `json:"lastRun,omitempty"`
	LastResult *RunResult `json:"lastResult,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	Progress   *Progress  `json:"progress,omitempty"`
}

// Status returns detailed health information. The indexer is ready once
// a run has finished.
func (idx *Indexer) Status() HealthStatus {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	status := HealthStatus{
		Ready:      idx.lastResult != nil,
		Running:    idx.running,
		StartTime:  idx.startTime,
		Uptime:     time.Since(idx.startTime).String(),
		LastRun:    idx.lastRun,
		LastResult: idx.lastResult,
	}
	if idx.current != nil {
		p := idx.current.Progress()
		status.Progress = &p
	}
	if idx.lastErr != nil {
		status.LastError = idx.lastErr.Error()
	}
	return status
}
