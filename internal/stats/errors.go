package stats

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyProcessed is returned by Ingest for an image whose identity
	// was recorded earlier.
	ErrAlreadyProcessed = errors.New("image already processed")
	// ErrUnsupportedFormat is returned by Export for an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// PersistenceError reports a failed save or load. The in-memory state is
// unchanged when it is returned.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("stats %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
