package repository

import "github.com/ca-srg/tosage/domain/entity"

// TargetFilter selects targets from the store (§6.1). A nil ID or a false
// flag means "don't filter on this".
type TargetFilter struct {
	ID            *string
	ActiveOnly    bool
	EligibleOnly  bool // isActive AND NOT isDisabledByRateLimit AND (rateLimitResetAt empty OR <= now)
}

// TargetRepository is the Target Store capability set consumed by the core
// (§6.1). Implementations must persist booleans as 0/1 and make BulkUpdate
// atomic so the daily-reset sweep is observable as a single step.
type TargetRepository interface {
	FindOne(filter TargetFilter) (*entity.Target, error)
	FindAll(filter TargetFilter) ([]*entity.Target, error)
	Create(target *entity.Target) error
	Save(target *entity.Target) error
	DeleteByID(id string) error
	BulkUpdate(targets []*entity.Target) error
}
