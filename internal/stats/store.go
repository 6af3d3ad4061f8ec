package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"metapick/internal/extract"
	"metapick/internal/filesystem"
	"metapick/internal/logging"
	"metapick/internal/metrics"
	"metapick/internal/normalize"
	"metapick/internal/record"
)

// Store holds the statistics counters.
type Store struct {
	opts       Options
	normalizer *normalize.Normalizer
	cache      *cache.Cache
	retry      filesystem.RetryConfig

	mu         sync.Mutex
	processed  map[string]struct{}
	models     map[string]int
	positive   map[string]int
	negative   map[string]int
	dimensions map[string]int
	samplers   map[string]int
	total      int
	lastUpdate time.Time
	mappings   map[string]string

	now func() time.Time
}

// New returns an empty store. Call Load to restore saved state.
func New(opts Options) *Store {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	s := &Store{
		opts:       opts,
		normalizer: normalize.New(opts.Normalize),
		cache:      cache.New(ttl, ttl*2),
		retry:      filesystem.DefaultRetryConfig(),
		mappings:   make(map[string]string),
		now:        time.Now,
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.processed = make(map[string]struct{})
	s.models = make(map[string]int)
	s.positive = make(map[string]int)
	s.negative = make(map[string]int)
	s.dimensions = make(map[string]int)
	s.samplers = make(map[string]int)
	s.total = 0
	s.lastUpdate = time.Time{}
}

// Normalizer returns the normalizer used for tags and model names.
func (s *Store) Normalizer() *normalize.Normalizer {
	return s.normalizer
}

// Identity returns the dedup key for an image: path, size, modification
// time, seed and model hash. When the file cannot be stat'ed the bare path
// is used.
func (s *Store) Identity(path string, rec *record.Record) string {
	info, err := filesystem.StatWithRetry(path, s.retry)
	if err != nil {
		return path
	}

	seed := ""
	hash := ""
	if rec != nil {
		if rec.Seed != nil {
			seed = strconv.FormatInt(*rec.Seed, 10)
		}
		hash = rec.ModelHash
	}
	return fmt.Sprintf("%s|%d|%d|%s|%s", path, info.Size(), info.ModTime().Unix(), seed, hash)
}

// Ingest counts rec once. It returns ErrAlreadyProcessed, without changing
// anything, when the image identity has been seen before.
func (s *Store) Ingest(path string, rec *record.Record) error {
	if rec == nil {
		rec = &record.Record{Path: path}
	}
	id := s.Identity(path, rec)

	model := modelName(rec)
	var displayModel string
	if model != "" {
		displayModel = s.normalizer.Model(model)
	}
	positive := s.normalizer.Tags(extract.SplitTags(rec.Prompt))
	negative := s.normalizer.Tags(extract.SplitTags(rec.NegativePrompt))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processed[id]; seen {
		metrics.IngestTotal.WithLabelValues("duplicate").Inc()
		return ErrAlreadyProcessed
	}

	if displayModel != "" {
		s.models[displayModel]++
	}
	for _, tag := range positive {
		s.positive[tag]++
	}
	for _, tag := range negative {
		s.negative[tag]++
	}
	if dims := rec.Dimensions(); dims != "" {
		s.dimensions[dims]++
	}
	if sampler := strings.TrimSpace(rec.Sampler); sampler != "" {
		s.samplers[sampler]++
	}

	s.processed[id] = struct{}{}
	s.total++
	s.touch()
	metrics.IngestTotal.WithLabelValues("ingested").Inc()
	return nil
}

// modelName returns the model name to count. A "hash:" reference is
// replaced by the model hash when one is known.
func modelName(rec *record.Record) string {
	name := strings.TrimSpace(rec.Model)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(name), "hash:") && rec.ModelHash != "" {
		return rec.ModelHash
	}
	return name
}

// touch records a committed mutation. Callers hold s.mu.
func (s *Store) touch() {
	s.lastUpdate = s.now()
	s.cache.Flush()
}

// statsFile is the on-disk schema of the statistics file.
type statsFile struct {
	ProcessedImages      []string       `json:"processed_images"`
	Models               map[string]int `json:"models"`
	PositiveTags         map[string]int `json:"positive_tags"`
	NegativeTags         map[string]int `json:"negative_tags"`
	Dimensions           map[string]int `json:"dimensions"`
	Samplers             map[string]int `json:"samplers"`
	TotalImagesProcessed int            `json:"total_images_processed"`
	LastUpdate           *string        `json:"last_update"`
}

// lastUpdateLayouts are accepted when reading last_update; files written
// by older tools carry no zone offset.
var lastUpdateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Load replaces the in-memory state with the statistics file and the model
// mapping file. A missing file leaves empty defaults. A corrupt statistics
// file is logged and also leaves empty defaults.
func (s *Store) Load() error {
	if err := s.loadMappings(); err != nil {
		return err
	}
	if s.opts.Path == "" {
		return nil
	}

	data, err := filesystem.ReadFileWithRetry(s.opts.Path, s.retry)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("No statistics file at %s, starting empty", s.opts.Path)
		return nil
	}
	if err != nil {
		metrics.PersistErrors.WithLabelValues("statistics", "read").Inc()
		return &PersistenceError{Op: "read", Path: s.opts.Path, Err: err}
	}

	var file statsFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.Warn("Statistics file %s is corrupt, starting empty: %v", s.opts.Path, err)
		metrics.PersistErrors.WithLabelValues("statistics", "read").Inc()
		s.mu.Lock()
		s.reset()
		s.cache.Flush()
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, id := range file.ProcessedImages {
		s.processed[id] = struct{}{}
	}
	copyPositive(s.models, file.Models)
	copyPositive(s.positive, file.PositiveTags)
	copyPositive(s.negative, file.NegativeTags)
	copyPositive(s.dimensions, file.Dimensions)
	copyPositive(s.samplers, file.Samplers)
	s.total = file.TotalImagesProcessed
	if file.LastUpdate != nil {
		s.lastUpdate = parseLastUpdate(*file.LastUpdate)
	}
	s.cache.Flush()

	logging.Info("Loaded statistics: %d images, %d models, %d positive tags, %d negative tags",
		s.total, len(s.models), len(s.positive), len(s.negative))
	return nil
}

// copyPositive copies every entry with a count of at least one.
func copyPositive(dst, src map[string]int) {
	for k, v := range src {
		if v > 0 {
			dst[k] = v
		}
	}
}

func parseLastUpdate(v string) time.Time {
	for _, layout := range lastUpdateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	logging.Debug("Ignoring unparseable last_update %q", v)
	return time.Time{}
}

// Persist saves the statistics file atomically. The previous file is kept
// as a .bak copy.
func (s *Store) Persist() error {
	if s.opts.Path == "" {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.PersistDuration.WithLabelValues("statistics").Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	file := statsFile{
		ProcessedImages:      make([]string, 0, len(s.processed)),
		Models:               s.models,
		PositiveTags:         s.positive,
		NegativeTags:         s.negative,
		Dimensions:           s.dimensions,
		Samplers:             s.samplers,
		TotalImagesProcessed: s.total,
	}
	for id := range s.processed {
		file.ProcessedImages = append(file.ProcessedImages, id)
	}
	sort.Strings(file.ProcessedImages)
	if !s.lastUpdate.IsZero() {
		v := s.lastUpdate.Format(time.RFC3339)
		file.LastUpdate = &v
	}

	return writeJSON("statistics", s.opts.Path, file)
}

// writeJSON marshals v and writes it atomically, mapping failures to
// *PersistenceError.
func writeJSON(kind, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		metrics.PersistErrors.WithLabelValues(kind, "marshal").Inc()
		return &PersistenceError{Op: "marshal", Path: path, Err: err}
	}

	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		op := filesystem.StageWrite
		var stage *filesystem.StageError
		if errors.As(err, &stage) {
			op = stage.Stage
		}
		metrics.PersistErrors.WithLabelValues(kind, op).Inc()
		logging.Error("Failed to save %s to %s: %v", kind, path, err)
		return &PersistenceError{Op: op, Path: path, Err: err}
	}
	return nil
}

func (s *Store) loadMappings() error {
	if s.opts.MappingsPath == "" {
		return nil
	}
	data, err := filesystem.ReadFileWithRetry(s.opts.MappingsPath, s.retry)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		metrics.PersistErrors.WithLabelValues("mappings", "read").Inc()
		return &PersistenceError{Op: "read", Path: s.opts.MappingsPath, Err: err}
	}

	mappings := map[string]string{}
	if err := json.Unmarshal(data, &mappings); err != nil {
		logging.Warn("Model mapping file %s is corrupt, ignoring it: %v", s.opts.MappingsPath, err)
		metrics.PersistErrors.WithLabelValues("mappings", "read").Inc()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = mappings
	s.normalizer.SetMappings(mappings)
	s.cache.Flush()
	return nil
}

// saveMappings writes the mapping file. Callers hold s.mu.
func (s *Store) saveMappings() error {
	if s.opts.MappingsPath == "" {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.PersistDuration.WithLabelValues("mappings").Observe(time.Since(start).Seconds())
	}()
	return writeJSON("mappings", s.opts.MappingsPath, s.mappings)
}
