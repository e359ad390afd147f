package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schema bootstraps every table this package owns. Unlike CursorDBRepository,
// which only ever reads an externally-owned database file, these stores own
// their schema and must create it on first boot.
const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	project_id              TEXT NOT NULL,
	location                TEXT NOT NULL,
	service_account_key     TEXT NOT NULL,
	is_active               INTEGER NOT NULL DEFAULT 1,
	last_used_at            TEXT,
	failure_count           INTEGER NOT NULL DEFAULT 0,
	request_count           INTEGER NOT NULL DEFAULT 0,
	daily_rate_limit        INTEGER,
	daily_requests_used     INTEGER NOT NULL DEFAULT 0,
	last_reset_date         TEXT,
	rate_limit_reset_at     TEXT,
	is_disabled_by_rate_limit INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
	id                            INTEGER PRIMARY KEY CHECK (id = 1),
	target_rotation_request_count INTEGER NOT NULL,
	max_failure_count             INTEGER NOT NULL,
	rate_limit_cooldown_seconds   INTEGER NOT NULL,
	max_retries                   INTEGER NOT NULL,
	failover_delay_seconds        INTEGER NOT NULL,
	log_retention_days            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS request_logs (
	id                TEXT PRIMARY KEY,
	request_id        TEXT NOT NULL,
	target_id         TEXT NOT NULL,
	timestamp         TEXT NOT NULL,
	requested_model   TEXT NOT NULL,
	model_used        TEXT NOT NULL,
	is_streaming      INTEGER NOT NULL,
	status_code       INTEGER NOT NULL,
	is_error          INTEGER NOT NULL,
	error_type        TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	response_time_ms  INTEGER NOT NULL,
	ip_address        TEXT NOT NULL DEFAULT '',
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs (timestamp);
`

// OpenSQLite opens (creating if absent) the sqlite file at path and
// bootstraps every table the Target Store, Settings Snapshot, and Request
// Log Sink need. A single *sql.DB is shared across all three repositories,
// the way the teacher shares one *sql.DB per call in CursorDBRepository —
// generalized here to a long-lived connection since these tables are ours
// to write, not an external tool's state file we only ever read.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
	}
	return db, nil
}
