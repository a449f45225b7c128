package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the terminal outcome of a sync attempt.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// SyncHistoryLimit caps history queries at the most recent rows.
const SyncHistoryLimit = 100

// SyncLog is one row of the append-only cross-system audit trail. Every
// completed sync attempt, whether scheduled, on-demand or
// webhook-triggered, produces exactly one row. Rows are never updated or
// deleted.
type SyncLog struct {
	ID          uuid.UUID
	EntityType  string
	EntityID    string
	Source      string
	Destination string
	Status      SyncStatus
	Data        map[string]any
	Error       string
	CreatedAt   time.Time
}

// NewSyncLog starts an audit entry for an attempted operation. The entry
// is finished with Succeed or Fail before it is appended.
func NewSyncLog(entityType, entityID, source, destination string, data map[string]any) *SyncLog {
	return &SyncLog{
		ID:          uuid.New(),
		EntityType:  entityType,
		EntityID:    entityID,
		Source:      source,
		Destination: destination,
		Data:        data,
		CreatedAt:   time.Now(),
	}
}

// Succeed marks the attempt as successful.
func (l *SyncLog) Succeed() {
	l.Status = SyncStatusSuccess
	l.Error = ""
}

// Fail marks the attempt as failed and captures the error message.
func (l *SyncLog) Fail(err error) {
	l.Status = SyncStatusError
	if err != nil {
		l.Error = err.Error()
	}
}

// SyncLogFilter narrows history queries. Zero values match everything.
type SyncLogFilter struct {
	EntityType string
	Status     SyncStatus
	Limit      int
}

// SyncLogRepository is the port for the audit trail storage.
type SyncLogRepository interface {
	// Append persists a finished entry. The store is append-only.
	Append(ctx context.Context, entry *SyncLog) error

	// List returns entries matching the filter, most recent first,
	// capped at SyncHistoryLimit.
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLog, error)

	// CountByStatus returns row counts grouped by status.
	CountByStatus(ctx context.Context) (map[SyncStatus]int64, error)
}
