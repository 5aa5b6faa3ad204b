package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/services"
)

// Maintainer runs the sweeper and the maintenance jobs on demand
type Maintainer interface {
	RunOnce(ctx context.Context) services.SweepStats
	CleanupSeatAvailability(ctx context.Context) (*models.SeatAvailabilityCleanupResult, error)
	SeatAvailabilityStats(ctx context.Context) (*models.SeatAvailabilityStats, error)
	ExpireListings(ctx context.Context) (*services.ListingExpiryStats, error)
}

// JobStatusReporter reports the scheduled jobs
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// AdminHandler exposes maintenance operations to admins
type AdminHandler struct {
	maintenance Maintainer
	jobs        JobStatusReporter
	logger      *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(maintenance Maintainer, jobs JobStatusReporter, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		maintenance: maintenance,
		jobs:        jobs,
		logger:      logger,
	}
}

// RunSweeper handles POST /api/v1/admin/sweeper/run
func (h *AdminHandler) RunSweeper(c *gin.Context) {
	stats := h.maintenance.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}

// CleanupSeatAvailability handles POST /api/v1/admin/seat-availability/cleanup
func (h *AdminHandler) CleanupSeatAvailability(c *gin.Context) {
	result, err := h.maintenance.CleanupSeatAvailability(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SeatAvailabilityStats handles GET /api/v1/admin/seat-availability/stats
func (h *AdminHandler) SeatAvailabilityStats(c *gin.Context) {
	stats, err := h.maintenance.SeatAvailabilityStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExpireListings handles POST /api/v1/admin/listings/expire
func (h *AdminHandler) ExpireListings(c *gin.Context) {
	stats, err := h.maintenance.ExpireListings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetJobStatus handles GET /api/v1/admin/jobs
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}
