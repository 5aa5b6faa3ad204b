package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/config"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

// CapacityHoldService places temporary holds on slots without a seat layout
type CapacityHoldService struct {
	db            *sqlx.DB
	inventoryRepo *database.InventoryRepository
	holdRepo      *database.HoldRepository
	bookingRepo   *database.BookingRepository
	config        config.BookingConfig
	clock         utils.Clock
	logger        *logrus.Logger
}

// NewCapacityHoldService creates a new CapacityHoldService
func NewCapacityHoldService(
	db *sqlx.DB,
	inventoryRepo *database.InventoryRepository,
	holdRepo *database.HoldRepository,
	bookingRepo *database.BookingRepository,
	cfg config.BookingConfig,
	clock utils.Clock,
	logger *logrus.Logger,
) *CapacityHoldService {
	return &CapacityHoldService{
		db:            db,
		inventoryRepo: inventoryRepo,
		holdRepo:      holdRepo,
		bookingRepo:   bookingRepo,
		config:        cfg,
		clock:         clock,
		logger:        logger,
	}
}

// CreateHold reserves quantity units of a slot for userID. eventDate is
// required for reusable slots and ignored otherwise.
func (s *CapacityHoldService) CreateHold(ctx context.Context, slotID, userID uuid.UUID, quantity int, eventDate *time.Time) (*models.HoldResponse, error) {
	if quantity < 1 {
		return nil, newInvalid("quantity must be at least 1")
	}

	now := s.clock.Now()
	hold := &models.BookingHold{
		ID:         uuid.New(),
		UserID:     userID,
		TimeSlotID: slotID,
		Quantity:   quantity,
		ExpiresAt:  now.Add(s.config.HoldTTL),
		CreatedAt:  now,
	}
	var available int

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		inventory := s.inventoryRepo.WithTx(tx)
		holds := s.holdRepo.WithTx(tx)

		slot, err := inventory.LockActiveTimeSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return newNotFound("time slot not found or inactive")
		}
		if slot.IsReusable() && eventDate == nil {
			return newInvalid("event_date is required for this time slot")
		}

		if _, err := holds.DeleteExpiredForSlot(ctx, slotID, now); err != nil {
			return err
		}

		if slot.IsReusable() {
			date := utils.DateOnly(*eventDate)
			hold.SlotDate = &date

			taken, err := s.bookingRepo.WithTx(tx).SumActiveQuantityForSlotDate(ctx, slotID, date)
			if err != nil {
				return err
			}
			held, err := holds.SumActiveQuantityForDate(ctx, slotID, date, now)
			if err != nil {
				return err
			}
			available = slot.Capacity - taken - held
		} else {
			held, err := holds.SumActiveQuantity(ctx, slotID, now)
			if err != nil {
				return err
			}
			available = slot.Capacity - slot.BookedCount - held
		}

		if available < 0 {
			available = 0
		}
		if quantity > available {
			return &CapacityError{Available: available, Requested: quantity}
		}

		return holds.Create(ctx, hold)
	})
	if err != nil {
		return nil, internalError("failed to create hold", err)
	}

	s.logger.WithFields(logrus.Fields{
		"hold_id":      hold.ID,
		"time_slot_id": slotID,
		"user_id":      userID,
		"quantity":     quantity,
		"expires_at":   hold.ExpiresAt,
	}).Info("Capacity hold created")

	return &models.HoldResponse{
		HoldID:            hold.ID,
		TimeSlotID:        slotID,
		Quantity:          quantity,
		ExpiresAt:         hold.ExpiresAt,
		TTLSeconds:        int(s.config.HoldTTL.Seconds()),
		RemainingCapacity: available - quantity,
	}, nil
}

// ReleaseHold deletes the caller's hold. A hold that had already expired is
// removed as well but reported as not found.
func (s *CapacityHoldService) ReleaseHold(ctx context.Context, holdID, slotID, userID uuid.UUID) (*models.HoldReleaseResponse, error) {
	now := s.clock.Now()

	var hold *models.BookingHold
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		slot, err := s.inventoryRepo.WithTx(tx).LockTimeSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return newNotFound("time slot not found")
		}

		hold, err = s.holdRepo.WithTx(tx).DeleteOwned(ctx, holdID, slotID, userID)
		return err
	})
	if err != nil {
		return nil, internalError("failed to release hold", err)
	}
	if hold == nil || hold.ExpiresAt.Before(now) {
		return nil, newNotFound("hold not found or already expired")
	}

	s.logger.WithFields(logrus.Fields{
		"hold_id":      holdID,
		"time_slot_id": slotID,
		"user_id":      userID,
		"quantity":     hold.Quantity,
	}).Info("Capacity hold released")

	return &models.HoldReleaseResponse{
		ReleasedQuantity: hold.Quantity,
		TimeSlotID:       slotID,
	}, nil
}
