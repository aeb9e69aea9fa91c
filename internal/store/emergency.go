package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

type gormEmergencyStore struct {
	db *gorm.DB
}

// NewGormEmergencyStore creates a GORM-backed EmergencyStore.
func NewGormEmergencyStore(db *gorm.DB) EmergencyStore {
	return &gormEmergencyStore{db: db}
}

func (s *gormEmergencyStore) Create(ctx context.Context, e *model.Emergency) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return fmt.Errorf("failed to insert emergency %d: %w", e.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("emergency %d already exists: %w", e.ID, ErrConflict)
	}
	return nil
}

func (s *gormEmergencyStore) Get(ctx context.Context, id int64) (*model.Emergency, error) {
	return findEmergency(s.db.WithContext(ctx), id)
}

func (s *gormEmergencyStore) Accept(ctx context.Context, id, volunteerID int64, at time.Time) (*model.Emergency, error) {
	var accepted *model.Emergency
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Emergency{}).
			Where("id = ? AND status = ?", id, model.StatusActive).
			Updates(map[string]any{
				"status":       model.StatusAccepted,
				"volunteer_id": volunteerID,
				"accepted_at":  at,
				"updated_at":   at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to accept emergency %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			// Zero rows means either no such id or a status other than active.
			var count int64
			if err := tx.Model(&model.Emergency{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to probe emergency %d: %w", id, err)
			}
			if count == 0 {
				return fmt.Errorf("emergency %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("emergency %d is no longer active: %w", id, ErrConflict)
		}

		e, err := findEmergency(tx, id)
		if err != nil {
			return err
		}
		accepted = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func (s *gormEmergencyStore) SetStatus(ctx context.Context, id int64, update StatusUpdate, at time.Time) (*model.Emergency, error) {
	values := map[string]any{
		"status":     update.Status,
		"updated_at": at,
	}
	reopen := update.Status == model.StatusActive
	switch {
	case reopen:
		values["volunteer_id"] = nil
	case update.ReplaceVolunteer && update.VolunteerID == nil:
		values["volunteer_id"] = nil
	case update.ReplaceVolunteer:
		// A volunteer can only be reassigned on a record that went through Accept.
		values["volunteer_id"] = gorm.Expr("CASE WHEN accepted_at IS NULL THEN volunteer_id ELSE ? END", *update.VolunteerID)
	}

	var updated *model.Emergency
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Emergency{}).Where("id = ?", id)
		if reopen {
			// An accepted record never becomes active again, so Accept wins at most once.
			q = q.Where("accepted_at IS NULL")
		}
		res := q.Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to set status of emergency %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Emergency{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to probe emergency %d: %w", id, err)
			}
			if count == 0 {
				return fmt.Errorf("emergency %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("emergency %d was already accepted: %w", id, ErrConflict)
		}

		e, err := findEmergency(tx, id)
		if err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *gormEmergencyStore) ListByStatus(ctx context.Context, status string, volunteerID *int64, limit int) ([]model.Emergency, error) {
	q := s.db.WithContext(ctx).Where("status = ?", status)
	if volunteerID != nil {
		q = q.Where("volunteer_id = ?", *volunteerID)
	}

	var out []model.Emergency
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s emergencies: %w", status, err)
	}
	return out, nil
}

func (s *gormEmergencyStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&model.Emergency{}).
			Where("created_at < ?", cutoff).
			Order("created_at").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to select expired emergencies: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Where("id IN ?", ids).Delete(&model.Emergency{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete %d expired emergencies: %w", len(ids), res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func findEmergency(db *gorm.DB, id int64) (*model.Emergency, error) {
	var e model.Emergency
	if err := db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("emergency %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load emergency %d: %w", id, err)
	}
	return &e, nil
}
