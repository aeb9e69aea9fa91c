package model

import "time"

// Audit actions written by the emergency engine.
const (
	ActionCreated            = "created"
	ActionPushedToVolunteers = "pushed_to_volunteers"
	ActionAccepted           = "accepted"
	ActionStatusPrefix       = "status_"
)

// ActorSystem marks audit entries written without an identified device owner.
const ActorSystem Role = "system"

// AuditEntry is an immutable record of an action taken against an emergency.
type AuditEntry struct {
	ID          int64  `gorm:"primaryKey"`
	EventID     string `gorm:"size:36;uniqueIndex;not null"`
	EmergencyID int64  `gorm:"index;not null"`
	Action      string `gorm:"size:64;index;not null"`
	ActorRole   Role   `gorm:"size:16;not null"`
	ActorUserID *int64
	Payload     string    `gorm:"type:text;not null;default:'{}'"`
	CreatedAt   time.Time `gorm:"index;not null"`
}
