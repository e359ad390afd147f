package usecase

import (
	"context"
	"net/http"
	"time"
)

// DispatchRequest carries the per-call identity captured once at HTTP
// ingress (§4.3), threaded through retries so every attempt logs under the
// same requestId.
type DispatchRequest struct {
	Body      []byte
	RequestID string
	IPAddress string
	StartTime time.Time
}

// DispatchService is the Dispatch Engine (C6): it selects a target, calls
// Vertex, classifies failures, retries/fails over per §4.3, and writes the
// HTTP response itself so streaming responses can be flushed chunk by
// chunk instead of buffered. A non-nil error means no bytes were written to
// w yet; the caller translates it to an error envelope.
type DispatchService interface {
	Dispatch(ctx context.Context, w http.ResponseWriter, req DispatchRequest) error
}
