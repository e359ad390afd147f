package domain

import "time"

// MetricsRecorder observes dispatch outcomes for the /metrics endpoint
// (§ ambient observability). Implementations must be safe for concurrent
// use; a nil MetricsRecorder is valid and simply means metrics are not
// wired for this call site.
type MetricsRecorder interface {
	RecordSuccess(targetID string)
	RecordError(targetID, errorKind string)
	ObserveDuration(streaming bool, d time.Duration)

	// InFlight adjusts the number of dispatches currently being handled;
	// delta is +1 when a dispatch starts and -1 when it finishes.
	InFlight(delta int)
}
