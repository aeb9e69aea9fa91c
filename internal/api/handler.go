package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
	"github.com/Rakib-codee/harmonycare-backend/internal/emergency"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
	"github.com/Rakib-codee/harmonycare-backend/internal/store"
)

// EmergencyService is the part of the lifecycle engine exposed over HTTP.
type EmergencyService interface {
	Report(ctx context.Context, in emergency.ReportInput) (int64, error)
	SetStatus(ctx context.Context, id int64, in emergency.StatusInput) error
	ListActive(ctx context.Context, volunteerID *int64) ([]model.Emergency, error)
	RetentionSweep(ctx context.Context, days int) (int64, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	emergencies   EmergencyService
	devices       store.DeviceDirectory
	webpush       *webpush.Options
	retentionDays int
	now           func() time.Time
}

// NewHandler creates a new API handler. retentionDays is the cleanup age used when a
// request does not name one.
func NewHandler(emergencies EmergencyService, devices store.DeviceDirectory, webpushOptions *webpush.Options, retentionDays int) *Handler {
	return &Handler{
		emergencies:   emergencies,
		devices:       devices,
		webpush:       webpushOptions,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// respondError writes err as {"error": ...} with the status of its kind.
// Server-side failures are logged and reported without internals.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

// Health answers liveness probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
