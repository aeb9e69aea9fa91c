package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
	"github.com/Rakib-codee/harmonycare-backend/internal/geo"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
	"github.com/Rakib-codee/harmonycare-backend/internal/parse"
	"github.com/Rakib-codee/harmonycare-backend/internal/store"
)

type locationRequest struct {
	Lat parse.Float `json:"lat"`
	Lon parse.Float `json:"lon"`
}

func (l *locationRequest) point() (*geo.Point, error) {
	if l == nil {
		return nil, nil
	}
	if !l.Lat.Set || !l.Lon.Set {
		return nil, apperr.Validation("location needs both lat and lon")
	}
	p := geo.Point{Lat: l.Lat.Value, Lon: l.Lon.Value}
	if !p.Valid() {
		return nil, apperr.Validation("location is out of range")
	}
	return &p, nil
}

type registerDeviceRequest struct {
	UserID      parse.Int        `json:"userId"`
	Role        model.Role       `json:"role"`
	PushToken   *string          `json:"pushToken"`
	IsAvailable *bool            `json:"isAvailable"`
	Location    *locationRequest `json:"location"`
}

// RegisterDevice handles POST /api/devices/register.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.UserID.Set || req.UserID.Value <= 0 {
		respondError(c, apperr.Validation("userId must be a positive integer"))
		return
	}
	if !req.Role.Valid() {
		respondError(c, apperr.Validation("role must be %q or %q", model.RoleElderly, model.RoleVolunteer))
		return
	}
	loc, err := req.Location.point()
	if err != nil {
		respondError(c, err)
		return
	}

	h.upsertDevice(c, store.DeviceUpdate{
		Role:        req.Role,
		UserID:      req.UserID.Value,
		PushToken:   req.PushToken,
		IsAvailable: req.IsAvailable,
		Location:    loc,
	})
}

type availabilityRequest struct {
	VolunteerID parse.Int        `json:"volunteerId"`
	IsAvailable *bool            `json:"isAvailable"`
	Location    *locationRequest `json:"location"`
	PushToken   *string          `json:"pushToken"`
}

// UpdateAvailability handles POST /api/volunteers/availability. It doubles as the
// volunteer heartbeat.
func (h *Handler) UpdateAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.VolunteerID.Set || req.VolunteerID.Value <= 0 {
		respondError(c, apperr.Validation("volunteerId must be a positive integer"))
		return
	}
	if req.IsAvailable == nil {
		respondError(c, apperr.Validation("isAvailable is required"))
		return
	}
	loc, err := req.Location.point()
	if err != nil {
		respondError(c, err)
		return
	}

	h.upsertDevice(c, store.DeviceUpdate{
		Role:        model.RoleVolunteer,
		UserID:      req.VolunteerID.Value,
		PushToken:   req.PushToken,
		IsAvailable: req.IsAvailable,
		Location:    loc,
	})
}

func (h *Handler) upsertDevice(c *gin.Context, update store.DeviceUpdate) {
	update.SeenAt = h.now().UTC()
	if err := h.devices.Upsert(c.Request.Context(), update); err != nil {
		respondError(c, apperr.Unavailable(fmt.Sprintf("failed to save device %s", model.DeviceKey(update.Role, update.UserID)), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
