package filesystem

import "sync/atomic"

// Observer records filesystem operation metrics. The metrics package
// provides the implementation; filesystem cannot import it without a cycle.
type Observer interface {
	// ObserveOperation records duration and error status for one operation.
	// volume is the resolved label ("images", "data" or "unknown");
	// operation is "stat", "open", "read" or "write".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

type observerHolder struct{ o Observer }

var defaultObserver atomic.Pointer[observerHolder]

// SetObserver sets the package-level metrics observer. Passing nil disables
// metric recording.
func SetObserver(o Observer) {
	defaultObserver.Store(&observerHolder{o: o})
}

// observe returns the package-level observer, or nil when none is set.
func observe() Observer {
	if h := defaultObserver.Load(); h != nil {
		return h.o
	}
	return nil
}
