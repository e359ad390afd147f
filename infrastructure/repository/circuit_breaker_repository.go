package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/protocol"
	"github.com/ca-srg/tosage/domain/repository"
)

// CircuitBreakingRepository wraps a VertexGenerativeRepository with one
// gobreaker.CircuitBreaker per target. Every error from the wrapped call
// counts as a failure, whatever its kind (rate-limit errors included, which
// markError treats as cooldowns rather than failures); three consecutive
// failures open the breaker for 30 seconds. While open, calls to that
// target short-circuit with KindUpstreamUnavailable instead of hitting the
// network, complementing rather than replacing Target Manager's own state machine:
// the breaker reacts within a single target's call history, the Target
// Manager reacts across the whole dispatch loop.
type CircuitBreakingRepository struct {
	next     repository.VertexGenerativeRepository
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakingRepository wraps next with per-target circuit breaking.
func NewCircuitBreakingRepository(next repository.VertexGenerativeRepository) *CircuitBreakingRepository {
	return &CircuitBreakingRepository{
		next:     next,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

var _ repository.VertexGenerativeRepository = (*CircuitBreakingRepository)(nil)

func (r *CircuitBreakingRepository) breakerFor(target *entity.Target) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target.ID()]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target.ID(),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	r.breakers[target.ID()] = cb
	return cb
}

// GenerateContent runs the wrapped unary call through the target's breaker.
func (r *CircuitBreakingRepository) GenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (*protocol.VertexGenerateContentResponse, error) {
	cb := r.breakerFor(target)
	result, err := cb.Execute(func() (interface{}, error) {
		return r.next.GenerateContent(ctx, target, model, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDispatchErrorWithCause(domain.KindUpstreamUnavailable, "target circuit breaker open", err)
		}
		return nil, err
	}
	return result.(*protocol.VertexGenerateContentResponse), nil
}

// StreamGenerateContent runs the wrapped call that opens the stream through
// the target's breaker; once the stream channel is handed back, chunk-level
// errors on it are the Dispatch Engine's concern, not the breaker's.
func (r *CircuitBreakingRepository) StreamGenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (<-chan repository.StreamEvent, error) {
	cb := r.breakerFor(target)
	result, err := cb.Execute(func() (interface{}, error) {
		return r.next.StreamGenerateContent(ctx, target, model, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDispatchErrorWithCause(domain.KindUpstreamUnavailable, "target circuit breaker open", err)
		}
		return nil, err
	}
	return result.(<-chan repository.StreamEvent), nil
}
