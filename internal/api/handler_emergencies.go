package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
	"github.com/Rakib-codee/harmonycare-backend/internal/emergency"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
	"github.com/Rakib-codee/harmonycare-backend/internal/parse"
)

type reportEmergencyRequest struct {
	ElderlyID parse.Int   `json:"elderlyId"`
	Latitude  parse.Float `json:"latitude"`
	Longitude parse.Float `json:"longitude"`
	Timestamp parse.Int   `json:"timestamp"`
	Status    string      `json:"status"`
}

// ReportEmergency handles POST /api/emergencies.
func (h *Handler) ReportEmergency(c *gin.Context) {
	var req reportEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.ElderlyID.Set {
		respondError(c, apperr.Validation("elderlyId is required"))
		return
	}

	id, err := h.emergencies.Report(c.Request.Context(), emergency.ReportInput{
		ElderlyID: req.ElderlyID.Value,
		Latitude:  req.Latitude.Ptr(),
		Longitude: req.Longitude.Ptr(),
		Timestamp: req.Timestamp.Ptr(),
		Status:    req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type emergencyResponse struct {
	ID          int64   `json:"id"`
	ElderlyID   int64   `json:"elderlyId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timestamp   int64   `json:"timestamp"`
	Status      string  `json:"status"`
	VolunteerID *int64  `json:"volunteerId,omitempty"`
}

func newEmergencyResponse(e model.Emergency) emergencyResponse {
	return emergencyResponse{
		ID:          e.ID,
		ElderlyID:   e.ElderlyID,
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Timestamp:   e.Timestamp,
		Status:      e.Status,
		VolunteerID: e.VolunteerID,
	}
}

// ListActiveEmergencies handles GET /api/emergencies?volunteerId=.
func (h *Handler) ListActiveEmergencies(c *gin.Context) {
	var volunteerID *int64
	if raw := c.Query("volunteerId"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperr.Validation("volunteerId must be an integer"))
			return
		}
		volunteerID = &v
	}

	list, err := h.emergencies.ListActive(c.Request.Context(), volunteerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]emergencyResponse, 0, len(list))
	for _, e := range list {
		response = append(response, newEmergencyResponse(e))
	}
	c.JSON(http.StatusOK, response)
}

type updateEmergencyRequest struct {
	Status      string            `json:"status"`
	VolunteerID parse.NullableInt `json:"volunteerId"`
}

// UpdateEmergency handles PATCH /api/emergencies/:id. Status "accepted" is the
// exactly-once acceptance and answers 409 to every caller but the first.
func (h *Handler) UpdateEmergency(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.Validation("invalid emergency id"))
		return
	}

	var req updateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err = h.emergencies.SetStatus(c.Request.Context(), id, emergency.StatusInput{
		Status:       req.Status,
		VolunteerSet: req.VolunteerID.Present,
		VolunteerID:  req.VolunteerID.Ptr(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
