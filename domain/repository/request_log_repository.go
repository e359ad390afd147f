package repository

import "github.com/ca-srg/tosage/domain/entity"

// RequestLogRepository is the append-only Request Log Sink (§6.3). A
// persistence failure here must never block the dispatch response (§5).
type RequestLogRepository interface {
	Append(record *entity.RequestLog) error
}
