package parser

import (
	"fmt"

	"metapick/internal/logging"
	"metapick/internal/metrics"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

// Chain runs the registered plugins against raw metadata and keeps the
// best result.
//
// Every plugin whose Detect returns true is parsed, and the record with
// the most resolved fields wins. Ties go to the plugin registered first,
// so the registration order is part of the selection rule. The fallback
// plugin only runs when no registered plugin produced a record.
type Chain struct {
	plugins  []Plugin
	fallback Plugin
}

// NewChain builds a chain from plugins in priority order. fallback may be
// nil.
func NewChain(fallback Plugin, plugins ...Plugin) *Chain {
	return &Chain{plugins: plugins, fallback: fallback}
}

// DefaultChain returns the standard chain: Automatic1111, ComfyUI and
// NovelAI, with GeneralAI as the fallback.
func DefaultChain() *Chain {
	return NewChain(NewGeneralAI(), NewAutomatic1111(), NewComfyUI(), NewNovelAI())
}

// Plugins lists plugin names in evaluation order, fallback last.
func (c *Chain) Plugins() []string {
	names := make([]string, 0, len(c.plugins)+1)
	for _, p := range c.plugins {
		names = append(names, p.Name())
	}
	if c.fallback != nil {
		names = append(names, c.fallback.Name())
	}
	return names
}

// Run returns the best record for raw. It never returns nil: input no
// plugin understands yields a stub marked unrecognized that carries the
// raw values.
func (c *Chain) Run(raw rawmeta.RawMetadata) *record.Record {
	var (
		best      *record.Record
		bestName  string
		bestCount int
	)

	for _, p := range c.plugins {
		rec, ok := c.try(p, raw)
		if !ok {
			continue
		}
		if n := rec.FieldCount(); n > bestCount {
			best, bestName, bestCount = rec, p.Name(), n
		}
	}

	if best == nil && c.fallback != nil {
		if rec, ok := c.try(c.fallback, raw); ok {
			if n := rec.FieldCount(); n > 0 {
				best, bestName, bestCount = rec, c.fallback.Name(), n
			}
		}
	}

	if best == nil {
		metrics.ParserSelections.WithLabelValues(nameUnrecognized).Inc()
		return record.Unrecognized(raw.Strings())
	}

	if best.Raw == nil {
		best.Raw = raw.Strings()
	}
	metrics.ParserSelections.WithLabelValues(bestName).Inc()
	metrics.ParserFieldsResolved.Observe(float64(bestCount))
	logging.Debug("Parser %s selected with %d fields", bestName, bestCount)
	return best
}

// try runs Detect and Parse for one plugin. Errors and panics exclude the
// plugin from this call.
func (c *Chain) try(p Plugin, raw rawmeta.RawMetadata) (*record.Record, bool) {
	detected, err := safeDetect(p, raw)
	if err != nil {
		metrics.ParserErrors.WithLabelValues(p.Name(), "detect").Inc()
		logging.Warn("Parser %s failed during detection: %v", p.Name(), err)
		return nil, false
	}
	if !detected {
		return nil, false
	}

	rec, err := safeParse(p, raw)
	if err != nil {
		metrics.ParserErrors.WithLabelValues(p.Name(), "parse").Inc()
		logging.Warn("Parser %s failed: %v", p.Name(), err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	rec.Validate()
	return rec, true
}

func safeDetect(p Plugin, raw rawmeta.RawMetadata) (detected bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			detected, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Detect(raw), nil
}

func safeParse(p Plugin, raw rawmeta.RawMetadata) (rec *record.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Parse(raw)
}
