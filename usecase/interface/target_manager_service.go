package usecase

import (
	"errors"

	"github.com/ca-srg/tosage/domain/entity"
)

// ErrNoTargetsAvailable is returned by Acquire when, after the daily-reset
// sweep, no target satisfies eligibility (invariant 2, §3).
var ErrNoTargetsAvailable = errors.New("no eligible targets available")

// TargetSpec is the upsert payload for AddOrReactivate.
type TargetSpec struct {
	Name                  string
	ProjectID             string
	Location              string
	ServiceAccountKeyJSON string
	DailyRateLimit        *int64
}

// TargetManagerService owns target selection, rotation, failure accounting
// and cooldown bookkeeping (C4, §4.1). A single instance must be shared
// across all concurrent dispatches so its internal lock serializes mutation.
type TargetManagerService interface {
	// Acquire selects a target eligible now, per the algorithm in §4.1.
	// Returns ErrNoTargetsAvailable when none are eligible.
	Acquire() (*entity.Target, error)

	// MarkSuccess records a successful dispatch against target.
	MarkSuccess(target *entity.Target) error

	// MarkError classifies err against target and mutates its failure or
	// cooldown state accordingly. Returns true iff err was an upstream
	// rate-limit (429) response.
	MarkError(target *entity.Target, err error) (wasRateLimit bool, markErr error)

	// AddOrReactivate upserts a target by (projectId, location).
	AddOrReactivate(spec TargetSpec) (*entity.Target, error)

	// ListActive returns all currently active targets, used by GET /v1/models.
	ListActive() ([]*entity.Target, error)
}
