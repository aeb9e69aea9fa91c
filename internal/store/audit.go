package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

type gormAuditLog struct {
	db *gorm.DB
}

// NewGormAuditLog creates an AuditLog writing to the audit_entries table.
func NewGormAuditLog(db *gorm.DB) AuditLog {
	return &gormAuditLog{db: db}
}

// Append stores entry, filling EventID and CreatedAt when unset. Entries are never updated.
func (a *gormAuditLog) Append(ctx context.Context, entry *model.AuditEntry) error {
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Payload == "" {
		entry.Payload = "{}"
	}
	if err := a.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit %q for emergency %d: %w", entry.Action, entry.EmergencyID, err)
	}
	return nil
}
