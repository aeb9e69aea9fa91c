package model

import "time"

// Emergency statuses with engine-enforced transitions. Any other status string is
// accepted as a free-form update.
const (
	StatusActive    = "active"
	StatusAccepted  = "accepted"
	StatusResolved  = "resolved"
	StatusCancelled = "cancelled"
)

// Emergency is a single reported incident.
type Emergency struct {
	ID          int64      `gorm:"primaryKey;autoIncrement:false"`
	ElderlyID   int64      `gorm:"index;not null"`
	Latitude    float64    `gorm:"not null"`
	Longitude   float64    `gorm:"not null"`
	Timestamp   int64      `gorm:"not null"` // client or server time in unix milliseconds
	Status      string     `gorm:"size:32;index;not null"`
	VolunteerID *int64     `gorm:"index"`
	CreatedAt   time.Time  `gorm:"index;not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
	AcceptedAt  *time.Time
}
