// Package emergency implements the emergency lifecycle: report, exactly-once
// acceptance, free-form status updates, listing and retention.
package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
	"github.com/Rakib-codee/harmonycare-backend/internal/dispatch"
	"github.com/Rakib-codee/harmonycare-backend/internal/geo"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
	"github.com/Rakib-codee/harmonycare-backend/internal/notification"
	"github.com/Rakib-codee/harmonycare-backend/internal/store"
)

const (
	// DefaultCandidateLimit caps the volunteer snapshot read per report.
	DefaultCandidateLimit = 200
	listLimit             = 200
	sweepLimit            = 200
	// maxIDAttempts bounds the search for a free server-derived id.
	maxIDAttempts = 5
)

// Notification payload types.
const (
	TypeNewEmergency      = "new_emergency"
	TypeEmergencyAccepted = "emergency_accepted"
)

// Service is the emergency lifecycle engine.
type Service struct {
	emergencies    store.EmergencyStore
	devices        store.DeviceDirectory
	audit          store.AuditLog
	notifier       notification.Notifier
	selector       dispatch.Selector
	candidateLimit int
	now            func() time.Time
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Selector       dispatch.Selector
	CandidateLimit int
	Now            func() time.Time
}

// NewService wires the engine to its collaborators.
func NewService(emergencies store.EmergencyStore, devices store.DeviceDirectory, audit store.AuditLog, notifier notification.Notifier, opts Options) *Service {
	s := &Service{
		emergencies:    emergencies,
		devices:        devices,
		audit:          audit,
		notifier:       notifier,
		selector:       dispatch.NewSelector(opts.Selector.Freshness, opts.Selector.MaxRecipients),
		candidateLimit: opts.CandidateLimit,
		now:            opts.Now,
	}
	if s.candidateLimit <= 0 {
		s.candidateLimit = DefaultCandidateLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ReportInput is a validated emergency report. Status is accepted for compatibility
// and ignored: new emergencies always start active.
type ReportInput struct {
	ElderlyID int64
	Latitude  *float64
	Longitude *float64
	Timestamp *int64
	Status    string
}

// Report persists a new active emergency, audits it and notifies nearby volunteers.
// It returns the new emergency id. Failures after the first audit entry are logged only.
func (s *Service) Report(ctx context.Context, in ReportInput) (int64, error) {
	if in.ElderlyID <= 0 {
		return 0, apperr.Validation("elderlyId must be a positive integer")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return 0, apperr.Validation("latitude and longitude are required")
	}
	loc := geo.Point{Lat: *in.Latitude, Lon: *in.Longitude}
	if !loc.Valid() {
		return 0, apperr.Validation("latitude and longitude must be valid coordinates")
	}

	now := s.now().UTC()
	e := &model.Emergency{
		ID:        now.UnixMilli(),
		ElderlyID: in.ElderlyID,
		Latitude:  loc.Lat,
		Longitude: loc.Lon,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	clientID := in.Timestamp != nil && *in.Timestamp > 0
	if clientID {
		e.ID = *in.Timestamp
	}
	e.Timestamp = e.ID

	if err := s.create(ctx, e, clientID); err != nil {
		return 0, err
	}

	if err := s.appendAudit(ctx, e.ID, model.ActionCreated, model.RoleElderly, &e.ElderlyID, map[string]any{
		"elderly_id": e.ElderlyID,
		"latitude":   e.Latitude,
		"longitude":  e.Longitude,
		"timestamp":  e.Timestamp,
	}); err != nil {
		return 0, apperr.Unavailable(fmt.Sprintf("failed to audit emergency %d", e.ID), err)
	}

	s.notifyVolunteers(ctx, e, loc, now)
	return e.ID, nil
}

// create inserts e without ever overwriting. A client-chosen id that collides is a
// conflict; a server-derived id is bumped to the next free millisecond.
func (s *Service) create(ctx context.Context, e *model.Emergency, clientID bool) error {
	for attempt := 1; ; attempt++ {
		err := s.emergencies.Create(ctx, e)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, store.ErrConflict):
			return apperr.Unavailable("failed to create emergency", err)
		case clientID:
			return apperr.Conflict("emergency %d already exists", e.ID)
		case attempt >= maxIDAttempts:
			return apperr.Conflict("no free emergency id near %d", e.ID)
		}
		e.ID++
		e.Timestamp = e.ID
	}
}

func (s *Service) notifyVolunteers(ctx context.Context, e *model.Emergency, loc geo.Point, now time.Time) {
	snapshot, err := s.devices.AvailableVolunteers(ctx, s.candidateLimit)
	if err != nil {
		log.Printf("Emergency %d: failed to load volunteer snapshot: %v", e.ID, err)
		return
	}

	candidates := s.selector.Select(loc, snapshot, now)
	if len(candidates) == 0 {
		log.Printf("Emergency %d: no reachable volunteers among %d candidates", e.ID, len(snapshot))
		return
	}

	data := map[string]string{
		"type":         TypeNewEmergency,
		"emergency_id": strconv.FormatInt(e.ID, 10),
		"elderly_id":   strconv.FormatInt(e.ElderlyID, 10),
		"latitude":     strconv.FormatFloat(e.Latitude, 'f', -1, 64),
		"longitude":    strconv.FormatFloat(e.Longitude, 'f', -1, 64),
	}
	if err := s.notifier.SendToMany(ctx, dispatch.Tokens(candidates), data); err != nil {
		log.Printf("Emergency %d: failed to notify %d volunteers: %v", e.ID, len(candidates), err)
		return
	}

	if err := s.appendAudit(ctx, e.ID, model.ActionPushedToVolunteers, model.ActorSystem, nil, map[string]any{
		"volunteer_ids": dispatch.UserIDs(candidates),
	}); err != nil {
		log.Printf("Emergency %d: %v", e.ID, err)
	}
}

// Accept hands an active emergency to volunteerID. Exactly one concurrent caller wins;
// the others get a Conflict error. The reporter is notified after the transition commits.
func (s *Service) Accept(ctx context.Context, id, volunteerID int64) error {
	if volunteerID <= 0 {
		return apperr.Validation("volunteerId must be a positive integer")
	}

	e, err := s.emergencies.Accept(ctx, id, volunteerID, s.now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("emergency %d not found", id)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("emergency %d is no longer active", id)
	case err != nil:
		return apperr.Unavailable(fmt.Sprintf("failed to accept emergency %d", id), err)
	}

	if err := s.appendAudit(ctx, id, model.ActionAccepted, model.RoleVolunteer, &volunteerID, map[string]any{
		"elderly_id": e.ElderlyID,
	}); err != nil {
		log.Printf("Emergency %d: %v", id, err)
	}

	s.notifyReporter(ctx, e)
	return nil
}

func (s *Service) notifyReporter(ctx context.Context, e *model.Emergency) {
	device, err := s.devices.Get(ctx, model.RoleElderly, e.ElderlyID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Emergency %d: failed to load reporter device: %v", e.ID, err)
		}
		return
	}
	if device.PushToken == "" || e.VolunteerID == nil {
		return
	}

	data := map[string]string{
		"type":         TypeEmergencyAccepted,
		"emergency_id": strconv.FormatInt(e.ID, 10),
		"volunteer_id": strconv.FormatInt(*e.VolunteerID, 10),
	}
	if err := s.notifier.SendToOne(ctx, device.PushToken, data); err != nil {
		log.Printf("Emergency %d: failed to notify reporter %d: %v", e.ID, e.ElderlyID, err)
	}
}

// StatusInput is a status transition request.
type StatusInput struct {
	Status string
	// VolunteerSet reports whether the caller sent volunteerId at all; a nil
	// VolunteerID with VolunteerSet clears the assignment.
	VolunteerSet bool
	VolunteerID  *int64
}

// SetStatus moves an emergency to in.Status. "accepted" goes through Accept and needs a
// volunteer. "active" is refused with a Conflict once the emergency has been accepted.
// Every other status is a plain overwrite.
func (s *Service) SetStatus(ctx context.Context, id int64, in StatusInput) error {
	status := strings.TrimSpace(in.Status)
	if status == "" {
		return apperr.Validation("status is required")
	}
	if status == model.StatusAccepted {
		if in.VolunteerID == nil {
			return apperr.Validation("volunteerId is required to accept an emergency")
		}
		return s.Accept(ctx, id, *in.VolunteerID)
	}

	update := store.StatusUpdate{
		Status:           status,
		ReplaceVolunteer: in.VolunteerSet,
		VolunteerID:      in.VolunteerID,
	}
	e, err := s.emergencies.SetStatus(ctx, id, update, s.now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("emergency %d not found", id)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("emergency %d was already accepted and cannot be reopened", id)
	case err != nil:
		return apperr.Unavailable(fmt.Sprintf("failed to update emergency %d", id), err)
	}

	actor := model.ActorSystem
	if in.VolunteerID != nil {
		actor = model.RoleVolunteer
	}
	if err := s.appendAudit(ctx, id, model.ActionStatusPrefix+status, actor, in.VolunteerID, map[string]any{
		"status":       e.Status,
		"volunteer_id": e.VolunteerID,
	}); err != nil {
		log.Printf("Emergency %d: %v", id, err)
	}
	return nil
}

// ListActive returns the open emergencies, followed by the accepted ones held by
// volunteerID when it is set.
func (s *Service) ListActive(ctx context.Context, volunteerID *int64) ([]model.Emergency, error) {
	list, err := s.emergencies.ListByStatus(ctx, model.StatusActive, nil, listLimit)
	if err != nil {
		return nil, apperr.Unavailable("failed to list emergencies", err)
	}
	if volunteerID == nil {
		return list, nil
	}

	mine, err := s.emergencies.ListByStatus(ctx, model.StatusAccepted, volunteerID, listLimit)
	if err != nil {
		return nil, apperr.Unavailable("failed to list accepted emergencies", err)
	}
	return append(list, mine...), nil
}

// RetentionSweep deletes up to 200 emergencies created more than days ago, whatever
// their status. Deletions are not audited.
func (s *Service) RetentionSweep(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, apperr.Validation("days must be a positive integer")
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	deleted, err := s.emergencies.DeleteCreatedBefore(ctx, cutoff, sweepLimit)
	if err != nil {
		return 0, apperr.Unavailable("failed to delete expired emergencies", err)
	}
	log.Printf("Retention sweep removed %d emergencies older than %d days", deleted, days)
	return deleted, nil
}

func (s *Service) appendAudit(ctx context.Context, emergencyID int64, action string, role model.Role, userID *int64, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	return s.audit.Append(ctx, &model.AuditEntry{
		EmergencyID: emergencyID,
		Action:      action,
		ActorRole:   role,
		ActorUserID: userID,
		Payload:     string(raw),
		CreatedAt:   s.now().UTC(),
	})
}
