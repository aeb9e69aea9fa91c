package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
	"github.com/Rakib-codee/harmonycare-backend/internal/parse"
)

type cleanupRequest struct {
	Days parse.Int `json:"days"`
}

// Cleanup handles POST /api/admin/cleanup. The body is optional.
func (h *Handler) Cleanup(c *gin.Context) {
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	days := h.retentionDays
	if req.Days.Set {
		if req.Days.Value <= 0 || req.Days.Value > 36500 {
			respondError(c, apperr.Validation("days must be between 1 and 36500"))
			return
		}
		days = int(req.Days.Value)
	}

	deleted, err := h.emergencies.RetentionSweep(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "days": days})
}
