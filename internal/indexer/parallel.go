package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"metapick/internal/logging"
	"metapick/internal/mediatypes"
	"metapick/internal/metrics"
	"metapick/internal/parser"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
	"metapick/internal/workers"
)

// maxWorkers caps the automatic worker count. Each WebP file may spawn a
// webpmux subprocess, so very wide pools only add contention.
const maxWorkers = 16

// ExtractorConfig configures the parallel extractor
type ExtractorConfig struct {
	// NumWorkers is the number of parallel workers (0 = auto based on CPU)
	NumWorkers int
	// ChannelBuffer is the size of the job and result channel buffers
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// Progress receives one event per finished file. Sends never block:
	// events are dropped when the receiver is slow. The extractor never
	// closes the channel.
	Progress chan<- Progress
}

// DefaultExtractorConfig returns sensible defaults based on available resources
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		NumWorkers:    workers.ForIO(maxWorkers),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// Progress reports how far an extraction run has come.
type Progress struct {
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Path  string `json:"path,omitempty"`
	Err   error  `json:"-"`
}

// Result is the outcome for one file.
type Result struct {
	Path   string
	Record *record.Record
	Err    error
}

// fileJob represents a file to be processed
type fileJob struct {
	path string
	info os.FileInfo
	err  error
}

// ParallelExtractor reads and parses image files with a pool of workers.
type ParallelExtractor struct {
	config ExtractorConfig
	loader *rawmeta.Loader
	chain  *parser.Chain

	ctx    context.Context
	cancel context.CancelFunc

	progress atomic.Value

	// Statistics
	filesProcessed atomic.Int64
	unrecognized   atomic.Int64
	errorsCount    atomic.Int64
}

// NewParallelExtractor creates an extractor. Zero-valued config fields fall
// back to DefaultExtractorConfig.
func NewParallelExtractor(loader *rawmeta.Loader, chain *parser.Chain, config ExtractorConfig) *ParallelExtractor {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForIO(maxWorkers)
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = DefaultExtractorConfig().ChannelBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	pe := &ParallelExtractor{
		config: config,
		loader: loader,
		chain:  chain,
		ctx:    ctx,
		cancel: cancel,
	}
	pe.progress.Store(Progress{})
	return pe
}

// Extract walks roots, processes every supported image and hands each
// result to handle. handle is called from the calling goroutine, one
// result at a time, so it needs no locking of its own.
//
// Cancelling ctx or calling Stop stops scheduling new files. Files already
// handed to a worker finish, and their results are still delivered.
// Extract then returns the context error.
func (pe *ParallelExtractor) Extract(ctx context.Context, roots []string, handle func(Result)) error {
	startTime := time.Now()

	files, err := pe.collectFiles(roots)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(pe.ctx, cancel)
	defer stop()

	total := len(files)
	pe.progress.Store(Progress{Total: total})
	logging.Info("Extracting metadata from %d files with %d workers", total, pe.config.NumWorkers)
	metrics.BatchWorkers.Set(float64(pe.config.NumWorkers))

	jobs := make(chan fileJob, min(pe.config.ChannelBuffer, max(total, 1)))
	results := make(chan Result, pe.config.ChannelBuffer)

	var wg sync.WaitGroup
	for i := 0; i < pe.config.NumWorkers; i++ {
		wg.Add(1)
		go pe.worker(ctx, i, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for _, job := range files {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		if handle != nil {
			handle(res)
		}
		pe.report(Progress{Done: done, Total: total, Path: res.Path, Err: res.Err})
	}

	logging.Info("Extraction complete: %d of %d files in %v (unrecognized: %d, errors: %d)",
		done, total, time.Since(startTime),
		pe.unrecognized.Load(), pe.errorsCount.Load())

	if err := pe.ctx.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (pe *ParallelExtractor) report(p Progress) {
	pe.progress.Store(p)
	if pe.config.Progress == nil {
		return
	}
	select {
	case pe.config.Progress <- p:
	default:
	}
}

// collectFiles lists every supported file under roots up front so the
// total is known before the first progress event. Roots may be files or
// directories; paths are returned sorted and without duplicates.
func (pe *ParallelExtractor) collectFiles(roots []string) ([]fileJob, error) {
	seen := make(map[string]struct{})
	var files []fileJob

	add := func(job fileJob) {
		if _, ok := seen[job.path]; ok {
			return
		}
		seen[job.path] = struct{}{}
		files = append(files, job)
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", root, err)
		}
		if !info.IsDir() {
			if mediatypes.IsSupported(root) {
				add(fileJob{path: filepath.Clean(root), info: info})
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-pe.ctx.Done():
				return fs.SkipAll
			default:
			}

			if err != nil {
				logging.Warn("Error accessing path %s: %v", path, err)
				return nil
			}

			if path != root && pe.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() || !mediatypes.IsSupported(path) {
				return nil
			}

			info, err := d.Info()
			add(fileJob{path: path, info: info, err: err})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// worker processes files from the jobs channel
func (pe *ParallelExtractor) worker(ctx context.Context, id int, jobs <-chan fileJob, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range jobs {
		if ctx.Err() != nil {
			continue
		}
		// in-flight work is not interrupted; the loader bounds each
		// subprocess call with its own timeout
		results <- pe.processFile(context.WithoutCancel(ctx), job)
	}

	logging.Debug("Worker %d finished", id)
}

// processFile extracts and parses a single file
func (pe *ParallelExtractor) processFile(ctx context.Context, job fileJob) Result {
	if job.err != nil {
		pe.errorsCount.Add(1)
		return Result{Path: job.path, Err: job.err}
	}

	raw := pe.loader.Extract(ctx, job.path)
	rec := pe.chain.Run(raw)
	if rec == nil {
		pe.errorsCount.Add(1)
		return Result{Path: job.path, Err: errors.New("parser chain returned no record")}
	}

	rec.Path = job.path
	rec.Format = mediatypes.ContainerFor(job.path).String()
	if job.info != nil {
		rec.SizeBytes = job.info.Size()
	}

	pe.filesProcessed.Add(1)
	if rec.Unrecognized {
		pe.unrecognized.Add(1)
	}
	return Result{Path: job.path, Record: rec}
}

// Stop cancels the extraction. Files already being processed finish.
func (pe *ParallelExtractor) Stop() {
	pe.cancel()
}

// Progress returns the most recent progress snapshot.
func (pe *ParallelExtractor) Progress() Progress {
	if p, ok := pe.progress.Load().(Progress); ok {
		return p
	}
	return Progress{}
}

// Stats returns current processing statistics
func (pe *ParallelExtractor) Stats() (files, unrecognized, errors int64) {
	return pe.filesProcessed.Load(), pe.unrecognized.Load(), pe.errorsCount.Load()
}
