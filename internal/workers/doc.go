/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

# Overview

runtime.NumCPU reports the host CPU count even when a cgroup limits the
process to fewer cores. GOMAXPROCS follows the container limit (Go 1.19+),
so this package sizes pools from GOMAXPROCS instead.

	// Batch metadata extraction: file reads plus optional webpmux calls
	numWorkers := workers.ForIO(16)

	// Explicit configuration wins, auto-sizing otherwise
	numWorkers := workers.Resolve(cfg.Workers, 32)

# Environment Variable Override

All functions respect METAPICK_WORKERS:

	METAPICK_WORKERS=4 metapick extract ~/Pictures

# Workload Types

  - ForCPU (1.0x): regex-heavy parsing of already loaded metadata
  - ForIO (2.0x): reading image headers and chunks from disk or NFS
  - ForMixed (1.5x): read, parse and ingest in one step

All functions are safe for concurrent use.
*/
package workers
