package impl

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/repository"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

// newTargetID mints an id for a freshly created target; projectId/location
// are folded in only for readability in logs and storage browsing.
func newTargetID(projectID, location string) string {
	return projectID + "-" + location + "-" + uuid.NewString()[:8]
}

// clock is overridden in tests so the daily-reset sweep and cooldown math
// are deterministic.
type clock func() time.Time

// TargetManagerServiceImpl is the Target Manager (C4). A single instance
// must be shared across all dispatches: mu serializes acquire/markSuccess/
// markError so the daily-reset sweep and rotation bookkeeping in §4.1 are
// observed atomically.
type TargetManagerServiceImpl struct {
	targetRepo repository.TargetRepository
	settings   repository.SettingsRepository
	logger     domain.Logger
	now        clock

	mu            sync.Mutex
	currentID     *string
	rotationCount int
}

// NewTargetManagerService wires a Target Manager over the given stores.
func NewTargetManagerService(targetRepo repository.TargetRepository, settings repository.SettingsRepository, logger domain.Logger) *TargetManagerServiceImpl {
	return &TargetManagerServiceImpl{
		targetRepo: targetRepo,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
	}
}

var _ usecase.TargetManagerService = (*TargetManagerServiceImpl)(nil)

// Acquire implements the §4.1 selection algorithm.
func (m *TargetManagerServiceImpl) Acquire() (*entity.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	now := m.now()

	active, err := m.targetRepo.FindAll(repository.TargetFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	// Step 3: daily reset sweep over all currently-active targets.
	var reset []*entity.Target
	for _, t := range active {
		if t.ApplyDailyResetIfNeeded(now) {
			reset = append(reset, t)
		}
	}
	if len(reset) > 0 {
		if err := m.targetRepo.BulkUpdate(reset); err != nil {
			return nil, err
		}
	}

	settings, err := m.settings.Get()
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = entity.DefaultSettings()
	}

	// Step 4: validate the retained "current" target, if any.
	if m.currentID != nil {
		cur, err := m.findByID(active, *m.currentID)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			if dropped, err := m.validateCurrent(cur, now, settings.TargetRotationRequestCount); err != nil {
				return nil, err
			} else if !dropped {
				m.rotationCount++
				return cur, nil
			}
		}
		m.currentID = nil
	}

	// Step 5: list eligible targets.
	eligible, err := m.targetRepo.FindAll(repository.TargetFilter{EligibleOnly: true})
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, usecase.ErrNoTargetsAvailable
	}

	// Step 6: tie-break — new targets (never used) first, else LRU.
	chosen := eligible[0]
	for _, t := range eligible[1:] {
		if better(t, chosen) {
			chosen = t
		}
	}

	// Step 7: adopt as current.
	id := chosen.ID()
	m.currentID = &id
	m.rotationCount = 1

	m.logger.Debug(ctx, "target acquired", domain.NewField("targetId", chosen.ID()), domain.NewField("projectId", chosen.ProjectID()))
	return chosen, nil
}

// validateCurrent applies §4.1 step 4's checks against a retained target.
// Returns true when the target must be dropped (and, when so, persists the
// mutation that dropped it).
func (m *TargetManagerServiceImpl) validateCurrent(cur *entity.Target, now time.Time, rotationLimit int) (bool, error) {
	if cur.ApplyDailyResetIfNeeded(now) {
		if err := m.targetRepo.Save(cur); err != nil {
			return false, err
		}
	}
	if rl := cur.RateLimitResetAt(); rl != nil && rl.After(now) {
		return true, nil
	}
	if cur.HasReachedDailyQuota() {
		cur.MarkDailyQuotaExhausted()
		if err := m.targetRepo.Save(cur); err != nil {
			return false, err
		}
		return true, nil
	}
	if m.rotationCount >= rotationLimit {
		return true, nil
	}
	return false, nil
}

func (m *TargetManagerServiceImpl) findByID(targets []*entity.Target, id string) (*entity.Target, error) {
	for _, t := range targets {
		if t.ID() == id {
			return t, nil
		}
	}
	// Not among the active set fetched at the top of Acquire: reload
	// directly in case it was deactivated by a concurrent markError.
	return m.targetRepo.FindOne(repository.TargetFilter{ID: &id})
}

// better implements the tie-break order: unused targets first, then LRU.
func better(candidate, current *entity.Target) bool {
	cu, ku := candidate.LastUsedAt(), current.LastUsedAt()
	if cu == nil && ku != nil {
		return true
	}
	if cu != nil && ku == nil {
		return false
	}
	if cu == nil && ku == nil {
		return false
	}
	return cu.Before(*ku)
}

// MarkSuccess records lastUsedAt/requestCount/dailyRequestsUsed and persists.
func (m *TargetManagerServiceImpl) MarkSuccess(target *entity.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target.MarkSuccess(m.now())
	return m.targetRepo.Save(target)
}

// MarkError classifies err and mutates failure/cooldown state per §4.1.
func (m *TargetManagerServiceImpl) MarkError(target *entity.Target, dispatchErr error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	now := m.now()

	de := domain.AsDispatchError(dispatchErr)
	if de.Kind == domain.KindRateLimit {
		resetAt := now.Add(defaultRateLimitCooldown)
		if settings, err := m.settings.Get(); err == nil && settings != nil {
			resetAt = now.Add(time.Duration(settings.RateLimitCooldownSeconds) * time.Second)
		}
		target.ApplyRateLimitCooldown(resetAt)
		if err := m.targetRepo.Save(target); err != nil {
			return false, err
		}
		m.dropCurrent(target.ID())
		m.logger.Warn(ctx, "target rate limited", domain.NewField("targetId", target.ID()), domain.NewField("resetAt", resetAt))
		return true, nil
	}

	maxFailures := defaultMaxFailureCount
	if settings, err := m.settings.Get(); err == nil && settings != nil {
		maxFailures = settings.MaxFailureCount
	}
	deactivated := target.RecordFailure(maxFailures)
	if deactivated {
		m.dropCurrent(target.ID())
	}
	if err := m.targetRepo.Save(target); err != nil {
		return false, err
	}
	m.logger.Warn(ctx, "target dispatch failed", domain.NewField("targetId", target.ID()), domain.NewField("deactivated", deactivated))
	return false, nil
}

func (m *TargetManagerServiceImpl) dropCurrent(id string) {
	if m.currentID != nil && *m.currentID == id {
		m.currentID = nil
	}
}

const (
	defaultRateLimitCooldown = 60 * time.Second
	defaultMaxFailureCount   = 5
)

// AddOrReactivate upserts a target by (projectId, location).
func (m *TargetManagerServiceImpl) AddOrReactivate(spec usecase.TargetSpec) (*entity.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.targetRepo.FindAll(repository.TargetFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.ProjectID() == spec.ProjectID && t.Location() == spec.Location {
			t.UpdateCredential(spec.Name, spec.ServiceAccountKeyJSON, spec.DailyRateLimit)
			t.Reactivate()
			if err := m.targetRepo.Save(t); err != nil {
				return nil, err
			}
			return t, nil
		}
	}

	id := newTargetID(spec.ProjectID, spec.Location)
	target, err := entity.NewTarget(id, spec.Name, spec.ProjectID, spec.Location, spec.ServiceAccountKeyJSON, spec.DailyRateLimit)
	if err != nil {
		return nil, err
	}
	if err := m.targetRepo.Create(target); err != nil {
		return nil, err
	}
	return target, nil
}

// ListActive returns all active targets, used by GET /v1/models.
func (m *TargetManagerServiceImpl) ListActive() ([]*entity.Target, error) {
	return m.targetRepo.FindAll(repository.TargetFilter{ActiveOnly: true})
}
