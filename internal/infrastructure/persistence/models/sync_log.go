package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// SyncLogModel is the GORM model for the append-only sync audit trail
type SyncLogModel struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	EntityType  string         `gorm:"size:50;index;not null"`
	EntityID    string         `gorm:"size:100;index"`
	Source      string         `gorm:"size:20;not null"`
	Destination string         `gorm:"size:20;not null"`
	Status      string         `gorm:"size:20;index;not null"`
	Data        map[string]any `gorm:"type:jsonb;serializer:json"`
	Error       string         `gorm:"type:text"`
	CreatedAt   time.Time      `gorm:"index;not null"`
}

// TableName returns the table name for the model
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the model to a domain entry
func (m *SyncLogModel) ToDomain() integration.SyncLog {
	return integration.SyncLog{
		ID:          m.ID,
		EntityType:  m.EntityType,
		EntityID:    m.EntityID,
		Source:      m.Source,
		Destination: m.Destination,
		Status:      integration.SyncStatus(m.Status),
		Data:        m.Data,
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a model from a domain entry
func SyncLogModelFromDomain(e *integration.SyncLog) *SyncLogModel {
	return &SyncLogModel{
		ID:          e.ID,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Source:      e.Source,
		Destination: e.Destination,
		Status:      string(e.Status),
		Data:        e.Data,
		Error:       e.Error,
		CreatedAt:   e.CreatedAt,
	}
}
