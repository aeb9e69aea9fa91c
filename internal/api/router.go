package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Rakib-codee/harmonycare-backend/internal/mw"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	RateLimit   rate.Limit
	RateBurst   int
	CacheTTL    time.Duration
	AdminSecret string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	rateLimiter := mw.RateLimiter(opts.RateLimit, opts.RateBurst)
	// Only static responses are cached; emergency listings must always be live.
	caching := mw.Cache(cache.New(opts.CacheTTL, 2*opts.CacheTTL), opts.CacheTTL)

	r.GET("/healthz", handler.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/devices/register", handler.RegisterDevice)
		api.POST("/volunteers/availability", handler.UpdateAvailability)

		api.POST("/emergencies", handler.ReportEmergency)
		api.GET("/emergencies", handler.ListActiveEmergencies)
		api.PATCH("/emergencies/:id", handler.UpdateEmergency)

		api.POST("/admin/cleanup", mw.AdminSecret(opts.AdminSecret), handler.Cleanup)

		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)
	}

	return r
}
