package repository

import (
	"database/sql"
	"fmt"

	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/repository"
)

// RequestLogSQLiteRepository is the append-only Request Log Sink (§6.3).
type RequestLogSQLiteRepository struct {
	db *sql.DB
}

// NewRequestLogSQLiteRepository wires a Request Log Sink over db.
func NewRequestLogSQLiteRepository(db *sql.DB) *RequestLogSQLiteRepository {
	return &RequestLogSQLiteRepository{db: db}
}

var _ repository.RequestLogRepository = (*RequestLogSQLiteRepository)(nil)

// Append writes one record. Callers (the Dispatch Engine) are responsible
// for logging-and-swallowing any error this returns rather than failing the
// response on its behalf.
func (r *RequestLogSQLiteRepository) Append(record *entity.RequestLog) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid request log record: %w", err)
	}
	_, err := r.db.Exec(`INSERT INTO request_logs (id, request_id, target_id, timestamp,
			requested_model, model_used, is_streaming, status_code, is_error, error_type,
			error_message, response_time_ms, ip_address, prompt_tokens, completion_tokens, total_tokens)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		record.ID, record.RequestID, record.TargetID, timeToNull(&record.Timestamp),
		record.RequestedModel, record.ModelUsed, boolToInt(record.IsStreaming), record.StatusCode,
		boolToInt(record.IsError), record.ErrorType, record.ErrorMessage, record.ResponseTimeMs,
		record.IPAddress, record.PromptTokens, record.CompletionTokens, record.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}
