package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

// SeatLocker is the seat lock manager used by InventoryHandler
type SeatLocker interface {
	LockSeats(ctx context.Context, slotID uuid.UUID, seatIDs []uuid.UUID, userID uuid.UUID) (*models.SeatLockResponse, error)
	ReleaseLocks(ctx context.Context, slotID, userID uuid.UUID) (*models.SeatLockReleaseResponse, error)
	GetSeatMap(ctx context.Context, slotID uuid.UUID) (*models.SeatMapResponse, error)
}

// CapacityHolder is the capacity hold manager used by InventoryHandler
type CapacityHolder interface {
	CreateHold(ctx context.Context, slotID, userID uuid.UUID, quantity int, eventDate *time.Time) (*models.HoldResponse, error)
	ReleaseHold(ctx context.Context, holdID, slotID, userID uuid.UUID) (*models.HoldReleaseResponse, error)
}

// TimeSlotLister lists the upcoming slots of a listing
type TimeSlotLister interface {
	ListTimeSlots(ctx context.Context, listingID uuid.UUID, date *time.Time) ([]models.TimeSlot, error)
}

// InventoryHandler serves seat maps, seat locks, capacity holds and slot listings
type InventoryHandler struct {
	seats     SeatLocker
	holds     CapacityHolder
	timeSlots TimeSlotLister
	logger    *logrus.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(seats SeatLocker, holds CapacityHolder, timeSlots TimeSlotLister, logger *logrus.Logger) *InventoryHandler {
	return &InventoryHandler{
		seats:     seats,
		holds:     holds,
		timeSlots: timeSlots,
		logger:    logger,
	}
}

// ListTimeSlots handles GET /api/v1/listings/:id/time-slots
func (h *InventoryHandler) ListTimeSlots(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		return
	}

	slots, err := h.timeSlots.ListTimeSlots(c.Request.Context(), listingID, date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_slots": slots})
}

// GetSeatMap handles GET /api/v1/time-slots/:id/seat-map
func (h *InventoryHandler) GetSeatMap(c *gin.Context) {
	slotID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	seatMap, err := h.seats.GetSeatMap(c.Request.Context(), slotID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seatMap)
}

// LockSeats handles POST /api/v1/time-slots/:id/seats/lock
func (h *InventoryHandler) LockSeats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	slotID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.LockSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.seats.LockSeats(c.Request.Context(), slotID, req.SeatIDs, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ReleaseSeats handles DELETE /api/v1/time-slots/:id/seats/lock
func (h *InventoryHandler) ReleaseSeats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	slotID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.seats.ReleaseLocks(c.Request.Context(), slotID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateHold handles POST /api/v1/time-slots/:id/hold
func (h *InventoryHandler) CreateHold(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	slotID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	var eventDate *time.Time
	if req.EventDate != nil {
		d, err := utils.ParseDate(*req.EventDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid_request", "event_date must be YYYY-MM-DD", "INVALID_DATE")
			return
		}
		eventDate = &d
	}

	resp, err := h.holds.CreateHold(c.Request.Context(), slotID, userID, req.Quantity, eventDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ReleaseHold handles DELETE /api/v1/time-slots/:id/hold/:hold_id
func (h *InventoryHandler) ReleaseHold(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	slotID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	holdID, ok := uuidParam(c, "hold_id")
	if !ok {
		return
	}

	resp, err := h.holds.ReleaseHold(c.Request.Context(), holdID, slotID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
