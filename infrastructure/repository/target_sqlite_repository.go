package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/repository"
)

// TargetSQLiteRepository is the Target Store (§6.1), backed by the shared
// sqlite connection bootstrapped by OpenSQLite.
type TargetSQLiteRepository struct {
	db *sql.DB
}

// NewTargetSQLiteRepository wires a Target Store over db.
func NewTargetSQLiteRepository(db *sql.DB) *TargetSQLiteRepository {
	return &TargetSQLiteRepository{db: db}
}

var _ repository.TargetRepository = (*TargetSQLiteRepository)(nil)

const targetColumns = `id, name, project_id, location, service_account_key, is_active,
	last_used_at, failure_count, request_count, daily_rate_limit, daily_requests_used,
	last_reset_date, rate_limit_reset_at, is_disabled_by_rate_limit`

func scanTarget(row interface{ Scan(...any) error }) (*entity.Target, error) {
	var (
		id, name, projectID, location, key string
		isActive, isDisabled               int
		lastUsedAt, lastResetDate          sql.NullString
		failureCount                       int
		requestCount, dailyRequestsUsed    int64
		dailyRateLimit                     sql.NullInt64
		rateLimitResetAt                   sql.NullString
	)
	if err := row.Scan(&id, &name, &projectID, &location, &key, &isActive,
		&lastUsedAt, &failureCount, &requestCount, &dailyRateLimit, &dailyRequestsUsed,
		&lastResetDate, &rateLimitResetAt, &isDisabled); err != nil {
		return nil, err
	}

	var dailyLimitPtr *int64
	if dailyRateLimit.Valid {
		v := dailyRateLimit.Int64
		dailyLimitPtr = &v
	}
	lastUsed, err := nullTimePtr(lastUsedAt)
	if err != nil {
		return nil, err
	}
	lastReset, err := nullTimePtr(lastResetDate)
	if err != nil {
		return nil, err
	}
	rateLimitReset, err := nullTimePtr(rateLimitResetAt)
	if err != nil {
		return nil, err
	}

	return entity.HydrateTarget(
		id, name, projectID, location, key,
		isActive != 0,
		lastUsed,
		failureCount,
		requestCount,
		dailyLimitPtr,
		dailyRequestsUsed,
		lastReset,
		rateLimitReset,
		isDisabled != 0,
	), nil
}

func nullTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", s.String, err)
	}
	return &t, nil
}

func timeToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FindOne looks up a single target, currently only by id (§6.1's filter
// shape leaves ActiveOnly/EligibleOnly to FindAll).
func (r *TargetSQLiteRepository) FindOne(filter repository.TargetFilter) (*entity.Target, error) {
	if filter.ID == nil {
		return nil, fmt.Errorf("findOne requires an id filter")
	}
	row := r.db.QueryRow(`SELECT `+targetColumns+` FROM targets WHERE id = ?`, *filter.ID)
	target, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find target: %w", err)
	}
	return target, nil
}

// FindAll returns targets matching filter. ActiveOnly and EligibleOnly may
// combine; EligibleOnly additionally requires isActive per its doc comment.
func (r *TargetSQLiteRepository) FindAll(filter repository.TargetFilter) ([]*entity.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE 1=1`
	var args []any

	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, *filter.ID)
	}
	if filter.ActiveOnly || filter.EligibleOnly {
		query += ` AND is_active = 1`
	}
	if filter.EligibleOnly {
		query += ` AND is_disabled_by_rate_limit = 0
			AND (rate_limit_reset_at IS NULL OR rate_limit_reset_at <= ?)`
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find targets: %w", err)
	}
	defer rows.Close()

	var targets []*entity.Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target row: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// Create inserts a brand-new target row.
func (r *TargetSQLiteRepository) Create(target *entity.Target) error {
	_, err := r.db.Exec(`INSERT INTO targets (`+targetColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		target.ID(), target.Name(), target.ProjectID(), target.Location(), target.ServiceAccountKeyJSON(),
		boolToInt(target.IsActive()), timeToNull(target.LastUsedAt()), target.FailureCount(),
		target.RequestCount(), target.DailyRateLimit(), target.DailyRequestsUsed(),
		timeToNull(target.LastResetDate()), timeToNull(target.RateLimitResetAt()),
		boolToInt(target.IsDisabledByRateLimit()),
	)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	return nil
}

// Save persists every mutable field of an existing target row.
func (r *TargetSQLiteRepository) Save(target *entity.Target) error {
	return r.save(r.db, target)
}

func (r *TargetSQLiteRepository) save(exec execer, target *entity.Target) error {
	_, err := exec.Exec(`UPDATE targets SET
		name = ?, project_id = ?, location = ?, service_account_key = ?, is_active = ?,
		last_used_at = ?, failure_count = ?, request_count = ?, daily_rate_limit = ?,
		daily_requests_used = ?, last_reset_date = ?, rate_limit_reset_at = ?, is_disabled_by_rate_limit = ?
		WHERE id = ?`,
		target.Name(), target.ProjectID(), target.Location(), target.ServiceAccountKeyJSON(),
		boolToInt(target.IsActive()), timeToNull(target.LastUsedAt()), target.FailureCount(),
		target.RequestCount(), target.DailyRateLimit(), target.DailyRequestsUsed(),
		timeToNull(target.LastResetDate()), timeToNull(target.RateLimitResetAt()),
		boolToInt(target.IsDisabledByRateLimit()), target.ID(),
	)
	if err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	return nil
}

// DeleteByID removes a target row.
func (r *TargetSQLiteRepository) DeleteByID(id string) error {
	if _, err := r.db.Exec(`DELETE FROM targets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}

// execer is the subset of *sql.DB / *sql.Tx that Save needs, so BulkUpdate
// can reuse it against a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// BulkUpdate persists every target in one transaction, per §6.1's
// atomicity requirement so the daily-reset sweep is observable as a
// single step.
func (r *TargetSQLiteRepository) BulkUpdate(targets []*entity.Target) error {
	if len(targets) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin bulk update: %w", err)
	}
	for _, target := range targets {
		if err := r.save(tx, target); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk update: %w", err)
	}
	return nil
}
