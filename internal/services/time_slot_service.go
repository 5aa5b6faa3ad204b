package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

// TimeSlotService lists bookable time slots of a listing
type TimeSlotService struct {
	listingRepo     *database.ListingRepository
	inventoryRepo   *database.InventoryRepository
	maintenanceRepo *database.MaintenanceRepository
	clock           utils.Clock
	logger          *logrus.Logger
}

// NewTimeSlotService creates a new TimeSlotService
func NewTimeSlotService(
	listingRepo *database.ListingRepository,
	inventoryRepo *database.InventoryRepository,
	maintenanceRepo *database.MaintenanceRepository,
	clock utils.Clock,
	logger *logrus.Logger,
) *TimeSlotService {
	return &TimeSlotService{
		listingRepo:     listingRepo,
		inventoryRepo:   inventoryRepo,
		maintenanceRepo: maintenanceRepo,
		clock:           clock,
		logger:          logger,
	}
}

// ListTimeSlots returns upcoming active dated slots ordered by date and start
// time. Slots that have already started are deactivated first.
func (s *TimeSlotService) ListTimeSlots(ctx context.Context, listingID uuid.UUID, date *time.Time) ([]models.TimeSlot, error) {
	listing, err := s.listingRepo.GetActiveListing(ctx, listingID)
	if err != nil {
		return nil, internalError("failed to load listing", err)
	}
	if listing == nil {
		return nil, newNotFound("listing not found or inactive")
	}

	now := s.clock.Now()
	today := utils.DateOnly(now)
	timeOfDay := utils.TimeOfDay(now)

	deactivated, err := s.maintenanceRepo.DeactivatePastSlots(ctx, today, timeOfDay)
	if err != nil {
		return nil, internalError("failed to deactivate past slots", err)
	}
	if deactivated > 0 {
		s.logger.WithField("count", deactivated).Debug("Deactivated past time slots")
	}

	if date != nil {
		d := utils.DateOnly(*date)
		date = &d
	}
	slots, err := s.inventoryRepo.ListUpcomingTimeSlots(ctx, listingID, today, timeOfDay, date)
	if err != nil {
		return nil, internalError("failed to list time slots", err)
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	return slots, nil
}
