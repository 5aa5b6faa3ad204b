package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/uptwn/booking-backend/internal/models"
)

// InventoryRepository handles halls, seats, time slots and seat_availability
type InventoryRepository struct {
	db sqlx.ExtContext
}

// NewInventoryRepository creates a new InventoryRepository
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *InventoryRepository) WithTx(tx *sqlx.Tx) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

const timeSlotColumns = `
	id, listing_id, hall_id, slot_date, start_time, end_time, capacity,
	booked_count, price_override, slot_type, discount_percent, is_active`

// ============================================================================
// TIME SLOTS
// ============================================================================

// GetActiveTimeSlot returns an active slot, or nil if missing or inactive
func (r *InventoryRepository) GetActiveTimeSlot(ctx context.Context, slotID uuid.UUID) (*models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + ` FROM time_slots WHERE id = $1 AND is_active = TRUE`
	return r.getTimeSlot(ctx, query, slotID)
}

// LockActiveTimeSlot returns an active slot and holds its row lock until the
// transaction ends. Every mutation of a slot's inventory starts here.
func (r *InventoryRepository) LockActiveTimeSlot(ctx context.Context, slotID uuid.UUID) (*models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + ` FROM time_slots WHERE id = $1 AND is_active = TRUE FOR UPDATE`
	return r.getTimeSlot(ctx, query, slotID)
}

// LockActiveListingSlot locks an active slot that belongs to listingID
func (r *InventoryRepository) LockActiveListingSlot(ctx context.Context, slotID, listingID uuid.UUID) (*models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + ` FROM time_slots WHERE id = $1 AND listing_id = $2 AND is_active = TRUE FOR UPDATE`
	return r.getTimeSlot(ctx, query, slotID, listingID)
}

// LockTimeSlot locks a slot regardless of its active flag (cancellation)
func (r *InventoryRepository) LockTimeSlot(ctx context.Context, slotID uuid.UUID) (*models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + ` FROM time_slots WHERE id = $1 FOR UPDATE`
	return r.getTimeSlot(ctx, query, slotID)
}

func (r *InventoryRepository) getTimeSlot(ctx context.Context, query string, args ...interface{}) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	err := sqlx.GetContext(ctx, r.db, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time slot: %w", err)
	}
	return &slot, nil
}

// ListUpcomingTimeSlots returns active dated slots of a listing that have not
// started yet, optionally restricted to one date
func (r *InventoryRepository) ListUpcomingTimeSlots(ctx context.Context, listingID uuid.UUID, today time.Time, timeOfDay string, date *time.Time) ([]models.TimeSlot, error) {
	query := `
		SELECT ts.id, ts.listing_id, ts.hall_id, ts.slot_date, ts.start_time, ts.end_time,
			   ts.capacity, ts.booked_count, ts.price_override, ts.slot_type,
			   ts.discount_percent, ts.is_active, h.name AS hall_name
		FROM time_slots ts
		LEFT JOIN halls h ON h.id = ts.hall_id
		WHERE ts.listing_id = $1
		  AND ts.is_active = TRUE
		  AND ts.slot_date IS NOT NULL
		  AND (ts.slot_date > $2 OR (ts.slot_date = $2 AND ts.start_time >= $3))`
	args := []interface{}{listingID, today, timeOfDay}
	if date != nil {
		query += ` AND ts.slot_date = $4`
		args = append(args, *date)
	}
	query += ` ORDER BY ts.slot_date, ts.start_time`

	var slots []models.TimeSlot
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	return slots, nil
}

// ListReusableTimeSlots returns the active date-less slots of a listing. When
// startsAfter is set, slots starting at or before it are skipped.
func (r *InventoryRepository) ListReusableTimeSlots(ctx context.Context, listingID uuid.UUID, startsAfter *string) ([]models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + `
		FROM time_slots
		WHERE listing_id = $1 AND slot_date IS NULL AND is_active = TRUE`
	args := []interface{}{listingID}
	if startsAfter != nil {
		query += ` AND start_time > $2`
		args = append(args, *startsAfter)
	}
	query += ` ORDER BY slot_type, start_time`

	var slots []models.TimeSlot
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reusable time slots: %w", err)
	}
	return slots, nil
}

// IncrementSlotBooked adds qty to the slot's booked_count
func (r *InventoryRepository) IncrementSlotBooked(ctx context.Context, slotID uuid.UUID, qty int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE time_slots SET booked_count = booked_count + $1 WHERE id = $2`, qty, slotID)
	if err != nil {
		return fmt.Errorf("failed to increment slot booked count: %w", err)
	}
	return nil
}

// DecrementSlotBooked subtracts qty from booked_count, floored at zero
func (r *InventoryRepository) DecrementSlotBooked(ctx context.Context, slotID uuid.UUID, qty int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE time_slots SET booked_count = GREATEST(0, booked_count - $1) WHERE id = $2`, qty, slotID)
	if err != nil {
		return fmt.Errorf("failed to decrement slot booked count: %w", err)
	}
	return nil
}

// ============================================================================
// HALLS & SEATS
// ============================================================================

// GetActiveHall returns an active hall or nil
func (r *InventoryRepository) GetActiveHall(ctx context.Context, hallID uuid.UUID) (*models.Hall, error) {
	var hall models.Hall
	err := sqlx.GetContext(ctx, r.db, &hall,
		`SELECT id, venue_id, name, screen_type, capacity, is_active FROM halls WHERE id = $1 AND is_active = TRUE`, hallID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	return &hall, nil
}

// GetSeatsByHall returns a hall's seats in rendering order
func (r *InventoryRepository) GetSeatsByHall(ctx context.Context, hallID uuid.UUID) ([]models.Seat, error) {
	query := `
		SELECT id, hall_id, row_label, seat_number, category, price, is_aisle, is_accessible
		FROM seats
		WHERE hall_id = $1
		ORDER BY row_label, seat_number`

	var seats []models.Seat
	if err := sqlx.SelectContext(ctx, r.db, &seats, query, hallID); err != nil {
		return nil, fmt.Errorf("failed to get hall seats: %w", err)
	}
	return seats, nil
}

// GetSeatsByIDs returns the seats with the given ids
func (r *InventoryRepository) GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]models.Seat, error) {
	query := `
		SELECT id, hall_id, row_label, seat_number, category, price, is_aisle, is_accessible
		FROM seats
		WHERE id = ANY($1)`

	var seats []models.Seat
	if err := sqlx.SelectContext(ctx, r.db, &seats, query, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	return seats, nil
}

// CountSeatsInHall counts how many of seatIDs belong to hallID
func (r *InventoryRepository) CountSeatsInHall(ctx context.Context, hallID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count,
		`SELECT COUNT(*) FROM seats WHERE hall_id = $1 AND id = ANY($2)`, hallID, pq.Array(seatIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to count hall seats: %w", err)
	}
	return count, nil
}

// ============================================================================
// SEAT AVAILABILITY
// ============================================================================

const availabilityColumns = `id, time_slot_id, seat_id, status, locked_by, locked_until`

// ReleaseExpiredLocksForSlot resets locks of one slot whose TTL has passed
func (r *InventoryRepository) ReleaseExpiredLocksForSlot(ctx context.Context, slotID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE seat_availability
		SET status = 'available', locked_by = NULL, locked_until = NULL
		WHERE time_slot_id = $1 AND status = 'locked' AND locked_until < $2`

	result, err := r.db.ExecContext(ctx, query, slotID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired locks: %w", err)
	}
	return result.RowsAffected()
}

// GetAvailabilityForSlot returns every availability row of a slot
func (r *InventoryRepository) GetAvailabilityForSlot(ctx context.Context, slotID uuid.UUID) ([]models.SeatAvailability, error) {
	var rows []models.SeatAvailability
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+availabilityColumns+` FROM seat_availability WHERE time_slot_id = $1`, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat availability: %w", err)
	}
	return rows, nil
}

// LockAvailabilityForSeats returns and row-locks the availability rows of
// the given seats. Seats without a row are simply absent from the result.
func (r *InventoryRepository) LockAvailabilityForSeats(ctx context.Context, slotID uuid.UUID, seatIDs []uuid.UUID) ([]models.SeatAvailability, error) {
	var rows []models.SeatAvailability
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+availabilityColumns+` FROM seat_availability WHERE time_slot_id = $1 AND seat_id = ANY($2) FOR UPDATE`,
		slotID, pq.Array(seatIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lock seat availability: %w", err)
	}
	return rows, nil
}

// UpsertSeatLock locks a seat for userID until the given instant, creating
// the availability row when the seat has none
func (r *InventoryRepository) UpsertSeatLock(ctx context.Context, slotID, seatID, userID uuid.UUID, until time.Time) error {
	query := `
		INSERT INTO seat_availability (id, time_slot_id, seat_id, status, locked_by, locked_until)
		VALUES ($1, $2, $3, 'locked', $4, $5)
		ON CONFLICT (time_slot_id, seat_id) DO UPDATE
		SET status = 'locked', locked_by = EXCLUDED.locked_by, locked_until = EXCLUDED.locked_until`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), slotID, seatID, userID, until)
	if err != nil {
		return fmt.Errorf("failed to lock seat %s: %w", seatID, err)
	}
	return nil
}

// ReleaseUserLocks frees every seat userID has locked on the slot and
// returns the released seat ids
func (r *InventoryRepository) ReleaseUserLocks(ctx context.Context, slotID, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		UPDATE seat_availability
		SET status = 'available', locked_by = NULL, locked_until = NULL
		WHERE time_slot_id = $1 AND locked_by = $2 AND status = 'locked'
		RETURNING seat_id`

	released := []uuid.UUID{}
	if err := sqlx.SelectContext(ctx, r.db, &released, query, slotID, userID); err != nil {
		return nil, fmt.Errorf("failed to release seat locks: %w", err)
	}
	return released, nil
}

// MarkSeatsBooked flips the given seats to booked and clears lock fields
func (r *InventoryRepository) MarkSeatsBooked(ctx context.Context, slotID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	query := `
		UPDATE seat_availability
		SET status = 'booked', locked_by = NULL, locked_until = NULL
		WHERE time_slot_id = $1 AND seat_id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, slotID, pq.Array(seatIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to mark seats booked: %w", err)
	}
	return result.RowsAffected()
}

// ResetSeatsForBooking returns a booking's seats to available. The rows are
// kept so the seats can be re-locked without an insert.
func (r *InventoryRepository) ResetSeatsForBooking(ctx context.Context, slotID, bookingID uuid.UUID) (int64, error) {
	query := `
		UPDATE seat_availability
		SET status = 'available', locked_by = NULL, locked_until = NULL
		WHERE time_slot_id = $1
		  AND seat_id IN (SELECT seat_id FROM booking_seats WHERE booking_id = $2)`

	result, err := r.db.ExecContext(ctx, query, slotID, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to release booked seats: %w", err)
	}
	return result.RowsAffected()
}
