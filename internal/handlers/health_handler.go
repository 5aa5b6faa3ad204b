package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything the health check can probe
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports the state of the database and optional backends
type HealthHandler struct {
	db      Pinger
	redis   Pinger
	events  string
	version string
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. redis may be nil; events
// names the publisher in use ("amqp" or "noop").
func NewHealthHandler(db Pinger, redis Pinger, events, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		events:  events,
		version: version,
		timeout: 2 * time.Second,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
			"error":    err.Error(),
		})
		return
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "healthy"
		if err := h.redis.PingContext(ctx); err != nil {
			// the rate limiter fails open, so this only degrades
			redisStatus = "unhealthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"redis":     redisStatus,
		"events":    h.events,
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	})
}
