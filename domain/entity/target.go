package entity

import (
	"fmt"
	"time"
)

// Target is a routable Vertex AI binding: a project/location pair reachable
// with a specific service-account credential, plus the counters the Target
// Manager uses to select and retire it.
type Target struct {
	id                    string
	name                  string
	projectID             string
	location              string
	serviceAccountKeyJSON string
	isActive              bool
	lastUsedAt            *time.Time
	failureCount          int
	requestCount          int64
	dailyRateLimit        *int64
	dailyRequestsUsed     int64
	lastResetDate         *time.Time
	rateLimitResetAt      *time.Time
	isDisabledByRateLimit bool
}

// NewTarget creates a new, active target with zeroed counters.
func NewTarget(id, name, projectID, location, serviceAccountKeyJSON string, dailyRateLimit *int64) (*Target, error) {
	t := &Target{
		id:                    id,
		name:                  name,
		projectID:             projectID,
		location:              location,
		serviceAccountKeyJSON: serviceAccountKeyJSON,
		isActive:              true,
		dailyRateLimit:        dailyRateLimit,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks invariant 1 of the data model: dailyRequestsUsed must
// never exceed dailyRateLimit when a limit is configured.
func (t *Target) Validate() error {
	if t.id == "" {
		return fmt.Errorf("target id cannot be empty")
	}
	if t.projectID == "" {
		return fmt.Errorf("target projectId cannot be empty")
	}
	if t.location == "" {
		return fmt.Errorf("target location cannot be empty")
	}
	if t.dailyRateLimit != nil {
		if *t.dailyRateLimit < 0 {
			return fmt.Errorf("dailyRateLimit cannot be negative")
		}
		if t.dailyRequestsUsed > *t.dailyRateLimit {
			return fmt.Errorf("dailyRequestsUsed (%d) exceeds dailyRateLimit (%d)", t.dailyRequestsUsed, *t.dailyRateLimit)
		}
	}
	if t.failureCount < 0 {
		return fmt.Errorf("failureCount cannot be negative")
	}
	if t.requestCount < 0 {
		return fmt.Errorf("requestCount cannot be negative")
	}
	return nil
}

// HydrateTarget reconstructs a Target from persisted field values. It is
// used only by repository implementations loading rows back out of
// storage; application code always goes through NewTarget or the
// mutators below.
func HydrateTarget(
	id, name, projectID, location, serviceAccountKeyJSON string,
	isActive bool,
	lastUsedAt *time.Time,
	failureCount int,
	requestCount int64,
	dailyRateLimit *int64,
	dailyRequestsUsed int64,
	lastResetDate *time.Time,
	rateLimitResetAt *time.Time,
	isDisabledByRateLimit bool,
) *Target {
	return &Target{
		id:                    id,
		name:                  name,
		projectID:             projectID,
		location:              location,
		serviceAccountKeyJSON: serviceAccountKeyJSON,
		isActive:              isActive,
		lastUsedAt:            lastUsedAt,
		failureCount:          failureCount,
		requestCount:          requestCount,
		dailyRateLimit:        dailyRateLimit,
		dailyRequestsUsed:     dailyRequestsUsed,
		lastResetDate:         lastResetDate,
		rateLimitResetAt:      rateLimitResetAt,
		isDisabledByRateLimit: isDisabledByRateLimit,
	}
}

func (t *Target) ID() string                  { return t.id }
func (t *Target) Name() string                { return t.name }
func (t *Target) DisplayName() string {
	if t.name != "" {
		return t.name
	}
	return t.id
}
func (t *Target) ProjectID() string                { return t.projectID }
func (t *Target) Location() string                 { return t.location }
func (t *Target) ServiceAccountKeyJSON() string     { return t.serviceAccountKeyJSON }
func (t *Target) IsActive() bool                    { return t.isActive }
func (t *Target) LastUsedAt() *time.Time            { return t.lastUsedAt }
func (t *Target) FailureCount() int                 { return t.failureCount }
func (t *Target) RequestCount() int64               { return t.requestCount }
func (t *Target) DailyRateLimit() *int64            { return t.dailyRateLimit }
func (t *Target) DailyRequestsUsed() int64          { return t.dailyRequestsUsed }
func (t *Target) LastResetDate() *time.Time         { return t.lastResetDate }
func (t *Target) RateLimitResetAt() *time.Time      { return t.rateLimitResetAt }
func (t *Target) IsDisabledByRateLimit() bool       { return t.isDisabledByRateLimit }

// IsEligible implements invariant 2 of the data model: a target may be
// acquired iff it is active, not disabled by daily quota exhaustion, and
// not under an upstream rate-limit cooldown.
func (t *Target) IsEligible(now time.Time) bool {
	if !t.isActive || t.isDisabledByRateLimit {
		return false
	}
	if t.rateLimitResetAt != nil && t.rateLimitResetAt.After(now) {
		return false
	}
	return true
}

// ApplyDailyResetIfNeeded resets the daily counter when lastResetDate names
// an earlier local calendar day than today, per §4.1 step 3. Returns true
// if a reset was applied (caller must persist).
func (t *Target) ApplyDailyResetIfNeeded(now time.Time) bool {
	today := now.Local()
	if t.lastResetDate == nil || !sameLocalDay(*t.lastResetDate, today) {
		t.dailyRequestsUsed = 0
		t.isDisabledByRateLimit = false
		t.lastResetDate = &now
		return true
	}
	return false
}

func sameLocalDay(a, b time.Time) bool {
	a = a.Local()
	b = b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MarkSuccess records a successful dispatch: bumps lastUsedAt, lifetime and
// daily counters.
func (t *Target) MarkSuccess(now time.Time) {
	t.lastUsedAt = &now
	t.requestCount++
	t.dailyRequestsUsed++
}

// MarkDailyQuotaExhausted flips isDisabledByRateLimit when the daily counter
// has reached the configured limit.
func (t *Target) MarkDailyQuotaExhausted() {
	t.isDisabledByRateLimit = true
}

// HasReachedDailyQuota reports whether another request would exceed the
// configured daily rate limit.
func (t *Target) HasReachedDailyQuota() bool {
	return t.dailyRateLimit != nil && t.dailyRequestsUsed >= *t.dailyRateLimit
}

// ApplyRateLimitCooldown puts the target under cooldown until resetAt, per
// the 429 handling in §4.1.
func (t *Target) ApplyRateLimitCooldown(resetAt time.Time) {
	t.rateLimitResetAt = &resetAt
}

// RecordFailure increments the failure counter and deactivates the target
// once it reaches maxFailureCount (invariant 4). Returns true if the target
// was just deactivated.
func (t *Target) RecordFailure(maxFailureCount int) bool {
	t.failureCount++
	if t.failureCount >= maxFailureCount {
		t.isActive = false
		return true
	}
	return false
}

// Reactivate clears failure/cooldown state, used by addOrReactivate.
func (t *Target) Reactivate() {
	t.isActive = true
	t.failureCount = 0
	t.rateLimitResetAt = nil
	t.isDisabledByRateLimit = false
}

// UpdateCredential replaces the routable binding's mutable fields, used by
// addOrReactivate when a target with the same (projectId, location) exists.
func (t *Target) UpdateCredential(name, serviceAccountKeyJSON string, dailyRateLimit *int64) {
	t.name = name
	t.serviceAccountKeyJSON = serviceAccountKeyJSON
	t.dailyRateLimit = dailyRateLimit
}

// Deactivate disables the target administratively.
func (t *Target) Deactivate() {
	t.isActive = false
}
