package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

type gormDeviceDirectory struct {
	db *gorm.DB
}

// NewGormDeviceDirectory creates a DeviceDirectory stored in the devices table.
func NewGormDeviceDirectory(db *gorm.DB) DeviceDirectory {
	return &gormDeviceDirectory{db: db}
}

// Upsert inserts the device or merges the provided fields into the existing row.
func (d *gormDeviceDirectory) Upsert(ctx context.Context, u DeviceUpdate) error {
	device := model.Device{
		UserID:     u.UserID,
		Role:       u.Role,
		LastSeenAt: u.SeenAt,
	}
	columns := []string{"last_seen_at", "updated_at"}
	if u.PushToken != nil {
		device.PushToken = *u.PushToken
		columns = append(columns, "push_token")
	}
	if u.IsAvailable != nil {
		device.IsAvailable = *u.IsAvailable
		columns = append(columns, "is_available")
	}
	if u.Location != nil {
		lat, lon := u.Location.Lat, u.Location.Lon
		device.Latitude = &lat
		device.Longitude = &lon
		columns = append(columns, "latitude", "longitude")
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&device).Error
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", device.Key(), err)
	}
	return nil
}

func (d *gormDeviceDirectory) Get(ctx context.Context, role model.Role, userID int64) (*model.Device, error) {
	var device model.Device
	err := d.db.WithContext(ctx).Where("role = ? AND user_id = ?", role, userID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %s: %w", model.DeviceKey(role, userID), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load device %s: %w", model.DeviceKey(role, userID), err)
	}
	return &device, nil
}

func (d *gormDeviceDirectory) AvailableVolunteers(ctx context.Context, limit int) ([]model.Device, error) {
	var devices []model.Device
	err := d.db.WithContext(ctx).
		Where("role = ? AND is_available = ?", model.RoleVolunteer, true).
		Order("last_seen_at DESC").
		Limit(limit).
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available volunteers: %w", err)
	}
	return devices, nil
}
