// Package stats keeps deduplicated usage counters for models, prompt tags,
// dimensions and samplers across every ingested image.
//
// A Store is constructed explicitly and shared by reference. Every mutation
// goes through one mutex; aggregate queries are cached until the next
// mutation. State is saved with Persist and restored with Load.
package stats
