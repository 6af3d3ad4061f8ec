package metrics

import (
	"sync"
	"time"

	"metapick/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	CollectorStats() Stats
}

// Stats holds the current statistics store sizes
type Stats struct {
	ImagesProcessed  int
	UniqueModels     int
	UniquePositive   int
	UniqueNegative   int
	UniqueDimensions int
	UniqueSamplers   int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
// It is safe to call more than once, but only after Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.CollectorStats()

	StatsImagesTotal.Set(float64(stats.ImagesProcessed))
	StatsUniqueEntries.WithLabelValues("models").Set(float64(stats.UniqueModels))
	StatsUniqueEntries.WithLabelValues("positive").Set(float64(stats.UniquePositive))
	StatsUniqueEntries.WithLabelValues("negative").Set(float64(stats.UniqueNegative))
	StatsUniqueEntries.WithLabelValues("dimensions").Set(float64(stats.UniqueDimensions))
	StatsUniqueEntries.WithLabelValues("samplers").Set(float64(stats.UniqueSamplers))

	logging.Debug("Metrics collected: images=%d, models=%d, positive=%d, negative=%d",
		stats.ImagesProcessed, stats.UniqueModels, stats.UniquePositive, stats.UniqueNegative)
}
