package model

import (
	"strconv"
	"time"
)

// Role identifies which side of an emergency a device belongs to.
type Role string

const (
	RoleElderly   Role = "elderly"
	RoleVolunteer Role = "volunteer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleElderly || r == RoleVolunteer
}

// Device is the last-known state of one (role, user) pair.
type Device struct {
	ID          int64  `gorm:"primaryKey"`
	UserID      int64  `gorm:"uniqueIndex:idx_devices_role_user;not null"`
	Role        Role   `gorm:"uniqueIndex:idx_devices_role_user;size:16;not null"`
	PushToken   string `gorm:"type:text;not null;default:''"`
	IsAvailable bool   `gorm:"index;not null;default:false"`
	Latitude    *float64
	Longitude   *float64
	LastSeenAt  time.Time `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the directory key of the device.
func (d Device) Key() string {
	return DeviceKey(d.Role, d.UserID)
}

// HasLocation reports whether both coordinates are known.
func (d Device) HasLocation() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// DeviceKey builds the "{role}_{userId}" identity used by the device directory.
func DeviceKey(role Role, userID int64) string {
	return string(role) + "_" + strconv.FormatInt(userID, 10)
}
