package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// SyncLogRepository implements the integration.SyncLogRepository port on
// top of GORM. The table is append-only; nothing here updates or deletes.
type SyncLogRepository struct {
	db *gorm.DB
}

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Append persists a finished audit entry.
func (r *SyncLogRepository) Append(ctx context.Context, entry *integration.SyncLog) error {
	model := models.SyncLogModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first. The result
// is capped at integration.SyncHistoryLimit regardless of the filter.
func (r *SyncLogRepository) List(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > integration.SyncHistoryLimit {
		limit = integration.SyncHistoryLimit
	}

	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var rows []models.SyncLogModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}

	entries := make([]integration.SyncLog, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}

// CountByStatus returns row counts grouped by status.
func (r *SyncLogRepository) CountByStatus(ctx context.Context) (map[integration.SyncStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var counts []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.SyncLogModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count sync logs: %w", err)
	}

	result := make(map[integration.SyncStatus]int64, len(counts))
	for _, c := range counts {
		result[integration.SyncStatus(c.Status)] = c.Count
	}
	return result, nil
}

// Ensure SyncLogRepository implements the port
var _ integration.SyncLogRepository = (*SyncLogRepository)(nil)
