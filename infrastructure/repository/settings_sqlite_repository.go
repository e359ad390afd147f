package repository

import (
	"database/sql"
	"fmt"

	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/repository"
)

// SettingsSQLiteRepository is the Settings Snapshot (§6.2): a single-row
// table read fresh on every dispatch, no cross-request cache.
type SettingsSQLiteRepository struct {
	db *sql.DB
}

// NewSettingsSQLiteRepository wires a Settings Snapshot store over db.
func NewSettingsSQLiteRepository(db *sql.DB) *SettingsSQLiteRepository {
	return &SettingsSQLiteRepository{db: db}
}

var _ repository.SettingsRepository = (*SettingsSQLiteRepository)(nil)

// Get returns the single settings row, or (nil, nil) when none exists yet —
// following JSONConfigRepository.Load()'s "return nil if absent, caller
// supplies defaults" idiom. Callers fall back to entity.DefaultSettings().
func (r *SettingsSQLiteRepository) Get() (*entity.Settings, error) {
	row := r.db.QueryRow(`SELECT target_rotation_request_count, max_failure_count,
		rate_limit_cooldown_seconds, max_retries, failover_delay_seconds, log_retention_days
		FROM settings WHERE id = 1`)

	var s entity.Settings
	err := row.Scan(&s.TargetRotationRequestCount, &s.MaxFailureCount, &s.RateLimitCooldownSeconds,
		&s.MaxRetries, &s.FailoverDelaySeconds, &s.LogRetentionDays)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// Save upserts the single settings row.
func (r *SettingsSQLiteRepository) Save(settings *entity.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	_, err := r.db.Exec(`INSERT INTO settings (id, target_rotation_request_count, max_failure_count,
			rate_limit_cooldown_seconds, max_retries, failover_delay_seconds, log_retention_days)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_rotation_request_count = excluded.target_rotation_request_count,
			max_failure_count = excluded.max_failure_count,
			rate_limit_cooldown_seconds = excluded.rate_limit_cooldown_seconds,
			max_retries = excluded.max_retries,
			failover_delay_seconds = excluded.failover_delay_seconds,
			log_retention_days = excluded.log_retention_days`,
		settings.TargetRotationRequestCount, settings.MaxFailureCount, settings.RateLimitCooldownSeconds,
		settings.MaxRetries, settings.FailoverDelaySeconds, settings.LogRetentionDays,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
