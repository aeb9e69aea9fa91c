package store

import (
	"context"
	"errors"
	"time"

	"github.com/Rakib-codee/harmonycare-backend/internal/geo"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write loses against the current state.
	ErrConflict = errors.New("record state conflict")
)

// EmergencyStore persists emergency records.
type EmergencyStore interface {
	// Create inserts e as a new record. It never overwrites: an existing id yields ErrConflict.
	Create(ctx context.Context, e *model.Emergency) error
	Get(ctx context.Context, id int64) (*model.Emergency, error)
	// Accept moves an active emergency to accepted in one atomic step.
	// It returns ErrNotFound for an unknown id and ErrConflict when the status is no longer active.
	Accept(ctx context.Context, id, volunteerID int64, at time.Time) (*model.Emergency, error)
	// SetStatus overwrites the status. Moving a record that was ever accepted back to
	// active yields ErrConflict; an unknown id yields ErrNotFound.
	SetStatus(ctx context.Context, id int64, update StatusUpdate, at time.Time) (*model.Emergency, error)
	ListByStatus(ctx context.Context, status string, volunteerID *int64, limit int) ([]model.Emergency, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// StatusUpdate is an unconditional status overwrite.
type StatusUpdate struct {
	Status string
	// ReplaceVolunteer reports whether VolunteerID should be written, including a clear to nil.
	ReplaceVolunteer bool
	VolunteerID      *int64
}

// DeviceDirectory holds the last-known state of every device, keyed by (role, userId).
type DeviceDirectory interface {
	Upsert(ctx context.Context, update DeviceUpdate) error
	Get(ctx context.Context, role model.Role, userID int64) (*model.Device, error)
	// AvailableVolunteers returns at most limit volunteers flagged available, freshest first.
	AvailableVolunteers(ctx context.Context, limit int) ([]model.Device, error)
}

// DeviceUpdate is a partial merge. Nil fields keep their stored value.
type DeviceUpdate struct {
	Role        model.Role
	UserID      int64
	PushToken   *string
	IsAvailable *bool
	Location    *geo.Point
	SeenAt      time.Time
}

// AuditLog is the append-only action trail.
type AuditLog interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}
