package entity

import (
	"fmt"
	"time"
)

// Sentinel targetId values accepted by the Request Log Sink for records
// that could not bind to a specific target (§6.3).
const (
	TargetUnavailable = "TARGET_UNAVAILABLE"
	TargetUnknown     = "TARGET_UNKNOWN"
)

// RequestLog is one append-only record of a dispatch outcome, keyed by
// requestId for correlation across retries of the same client request.
type RequestLog struct {
	ID               string
	RequestID        string
	TargetID         string
	Timestamp        time.Time
	RequestedModel   string
	ModelUsed        string
	IsStreaming      bool
	StatusCode       int
	IsError          bool
	ErrorType        string
	ErrorMessage     string
	ResponseTimeMs   int64
	IPAddress        string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Validate checks the shape the sink requires before an append (§6.3).
func (r *RequestLog) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("requestLog requestId cannot be empty")
	}
	if r.TargetID == "" {
		return fmt.Errorf("requestLog targetId cannot be empty")
	}
	if r.StatusCode < 100 || r.StatusCode > 599 {
		return fmt.Errorf("requestLog statusCode %d out of range", r.StatusCode)
	}
	if r.IsError && r.ErrorType == "" {
		return fmt.Errorf("requestLog errorType required when isError is true")
	}
	return nil
}
