// Package consolidate merges, removes and reclassifies prompt tag counters.
//
// Every operation works on plain map[string]int counters keyed by tag. Rules
// and blacklists are user-authored JSON files; suggestions are proposals
// only and never mutate their input.
package consolidate
