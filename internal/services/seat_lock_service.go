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

// SeatLockService manages short-lived seat locks and the seat map
type SeatLockService struct {
	db            *sqlx.DB
	inventoryRepo *database.InventoryRepository
	config        config.BookingConfig
	clock         utils.Clock
	logger        *logrus.Logger
}

// NewSeatLockService creates a new SeatLockService
func NewSeatLockService(
	db *sqlx.DB,
	inventoryRepo *database.InventoryRepository,
	cfg config.BookingConfig,
	clock utils.Clock,
	logger *logrus.Logger,
) *SeatLockService {
	return &SeatLockService{
		db:            db,
		inventoryRepo: inventoryRepo,
		config:        cfg,
		clock:         clock,
		logger:        logger,
	}
}

// ============================================================================
// LOCK / RELEASE
// ============================================================================

// LockSeats locks every seat for userID or none of them. Re-locking seats the
// caller already holds extends their expiry.
func (s *SeatLockService) LockSeats(ctx context.Context, slotID uuid.UUID, seatIDs []uuid.UUID, userID uuid.UUID) (*models.SeatLockResponse, error) {
	if len(seatIDs) == 0 {
		return nil, newInvalid("seat_ids must contain at least one seat")
	}
	if len(seatIDs) > s.config.MaxSeatsPerLock {
		return nil, newInvalid("cannot lock more than %d seats at once", s.config.MaxSeatsPerLock)
	}
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, newInvalid("duplicate seat id %s", id)
		}
		seen[id] = struct{}{}
	}

	now := s.clock.Now()
	until := now.Add(s.config.SeatLockTTL)

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.inventoryRepo.WithTx(tx)

		slot, err := repo.LockActiveTimeSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return newNotFound("time slot not found or inactive")
		}
		if !slot.HasHall() {
			return newInvalid("time slot has no seat layout, use a capacity hold instead")
		}

		inHall, err := repo.CountSeatsInHall(ctx, *slot.HallID, seatIDs)
		if err != nil {
			return err
		}
		if inHall != len(seatIDs) {
			return newInvalid("one or more seats do not belong to this hall")
		}

		if _, err := repo.ReleaseExpiredLocksForSlot(ctx, slotID, now); err != nil {
			return err
		}

		rows, err := repo.LockAvailabilityForSeats(ctx, slotID, seatIDs)
		if err != nil {
			return err
		}
		if err := checkSeatsLockable(seatIDs, indexAvailability(rows), userID, now); err != nil {
			return err
		}

		for _, seatID := range seatIDs {
			if err := repo.UpsertSeatLock(ctx, slotID, seatID, userID, until); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError("failed to lock seats", err)
	}

	s.logger.WithFields(logrus.Fields{
		"time_slot_id": slotID,
		"user_id":      userID,
		"seat_count":   len(seatIDs),
		"locked_until": until,
	}).Info("Seats locked")

	return &models.SeatLockResponse{
		LockedSeats: seatIDs,
		LockedUntil: until,
		TTLSeconds:  int(s.config.SeatLockTTL.Seconds()),
	}, nil
}

// checkSeatsLockable rejects the whole request on the first seat, in request
// order, that is booked or held by someone else
func checkSeatsLockable(seatIDs []uuid.UUID, rows map[uuid.UUID]*models.SeatAvailability, userID uuid.UUID, now time.Time) error {
	for _, seatID := range seatIDs {
		state := models.ResolveSeatState(rows[seatID], now)
		switch state.Kind {
		case models.SeatBooked:
			return newConflict("seat %s is already booked", seatID)
		case models.SeatLocked:
			if !state.IsLockedBy(userID) {
				return newConflict("seat %s is locked by another user", seatID)
			}
		}
	}
	return nil
}

func indexAvailability(rows []models.SeatAvailability) map[uuid.UUID]*models.SeatAvailability {
	index := make(map[uuid.UUID]*models.SeatAvailability, len(rows))
	for i := range rows {
		index[rows[i].SeatID] = &rows[i]
	}
	return index
}

// ReleaseLocks frees every seat the caller holds on the slot. Releasing
// nothing is not an error.
func (s *SeatLockService) ReleaseLocks(ctx context.Context, slotID, userID uuid.UUID) (*models.SeatLockReleaseResponse, error) {
	var released []uuid.UUID

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.inventoryRepo.WithTx(tx)

		slot, err := repo.LockTimeSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return newNotFound("time slot not found")
		}

		released, err = repo.ReleaseUserLocks(ctx, slotID, userID)
		return err
	})
	if err != nil {
		return nil, internalError("failed to release seat locks", err)
	}

	if len(released) > 0 {
		s.logger.WithFields(logrus.Fields{
			"time_slot_id": slotID,
			"user_id":      userID,
			"released":     len(released),
		}).Info("Seat locks released")
	}

	return &models.SeatLockReleaseResponse{ReleasedSeats: released}, nil
}

// ============================================================================
// SEAT MAP
// ============================================================================

// GetSeatMap renders the hall layout of a slot with the effective state of
// every seat
func (s *SeatLockService) GetSeatMap(ctx context.Context, slotID uuid.UUID) (*models.SeatMapResponse, error) {
	slot, err := s.inventoryRepo.GetActiveTimeSlot(ctx, slotID)
	if err != nil {
		return nil, internalError("failed to load time slot", err)
	}
	if slot == nil {
		return nil, newNotFound("time slot not found or inactive")
	}
	if !slot.HasHall() {
		return nil, newInvalid("time slot has no seat layout")
	}

	hall, err := s.inventoryRepo.GetActiveHall(ctx, *slot.HallID)
	if err != nil {
		return nil, internalError("failed to load hall", err)
	}
	if hall == nil {
		return nil, newNotFound("hall not found or inactive")
	}

	now := s.clock.Now()
	if _, err := s.inventoryRepo.ReleaseExpiredLocksForSlot(ctx, slotID, now); err != nil {
		return nil, internalError("failed to release expired locks", err)
	}

	seats, err := s.inventoryRepo.GetSeatsByHall(ctx, hall.ID)
	if err != nil {
		return nil, internalError("failed to load seats", err)
	}
	rows, err := s.inventoryRepo.GetAvailabilityForSlot(ctx, slotID)
	if err != nil {
		return nil, internalError("failed to load seat availability", err)
	}

	return &models.SeatMapResponse{
		TimeSlotID: slotID,
		Hall:       models.HallSummary{ID: hall.ID, Name: hall.Name, ScreenType: hall.ScreenType},
		Rows:       buildSeatRows(seats, indexAvailability(rows), now),
	}, nil
}

// buildSeatRows groups seats, already ordered by (row_label, seat_number),
// into rows. A row takes its category and price from its first seat.
func buildSeatRows(seats []models.Seat, availability map[uuid.UUID]*models.SeatAvailability, now time.Time) []models.SeatMapRow {
	rows := []models.SeatMapRow{}
	for _, seat := range seats {
		if len(rows) == 0 || rows[len(rows)-1].Label != seat.RowLabel {
			rows = append(rows, models.SeatMapRow{
				Label:    seat.RowLabel,
				Category: seat.Category,
				Price:    seat.Price,
				Seats:    []models.SeatMapSeat{},
			})
		}
		row := &rows[len(rows)-1]
		row.Seats = append(row.Seats, models.SeatMapSeat{
			ID:           seat.ID,
			Number:       seat.SeatNumber,
			Status:       models.ResolveSeatState(availability[seat.ID], now).Status(),
			IsAisle:      seat.IsAisle,
			IsAccessible: seat.IsAccessible,
		})
	}
	return rows
}
