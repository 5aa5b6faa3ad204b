package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/uptwn/booking-backend/internal/models"
)

// HoldRepository manages booking_holds, the capacity-based counterpart of
// seat locks
type HoldRepository struct {
	db sqlx.ExtContext
}

// NewHoldRepository creates a new HoldRepository
func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *HoldRepository) WithTx(tx *sqlx.Tx) *HoldRepository {
	return &HoldRepository{db: tx}
}

// DeleteExpiredForSlot removes holds on the slot that expired before now
func (r *HoldRepository) DeleteExpiredForSlot(ctx context.Context, slotID uuid.UUID, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_holds WHERE time_slot_id = $1 AND expires_at < $2`, slotID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", err)
	}
	return result.RowsAffected()
}

// SumActiveQuantity totals live hold quantities on a dated slot
func (r *HoldRepository) SumActiveQuantity(ctx context.Context, slotID uuid.UUID, now time.Time) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, r.db, &total,
		`SELECT COALESCE(SUM(quantity), 0) FROM booking_holds WHERE time_slot_id = $1 AND expires_at >= $2`,
		slotID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active holds: %w", err)
	}
	return total, nil
}

// SumActiveQuantityForDate totals live hold quantities on a reusable slot
// for one calendar date
func (r *HoldRepository) SumActiveQuantityForDate(ctx context.Context, slotID uuid.UUID, date time.Time, now time.Time) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, r.db, &total,
		`SELECT COALESCE(SUM(quantity), 0) FROM booking_holds WHERE time_slot_id = $1 AND slot_date = $2 AND expires_at >= $3`,
		slotID, date, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active holds for date: %w", err)
	}
	return total, nil
}

// SumOthersActiveQuantityForDate totals live holds on a reusable slot for
// one calendar date, leaving out userID's own holds
func (r *HoldRepository) SumOthersActiveQuantityForDate(ctx context.Context, slotID uuid.UUID, date time.Time, userID uuid.UUID, now time.Time) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, r.db, &total,
		`SELECT COALESCE(SUM(quantity), 0) FROM booking_holds WHERE time_slot_id = $1 AND slot_date = $2 AND user_id <> $3 AND expires_at >= $4`,
		slotID, date, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum other holds for date: %w", err)
	}
	return total, nil
}

// Create inserts a hold
func (r *HoldRepository) Create(ctx context.Context, hold *models.BookingHold) error {
	query := `
		INSERT INTO booking_holds (id, user_id, time_slot_id, slot_date, quantity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		hold.ID, hold.UserID, hold.TimeSlotID, hold.SlotDate, hold.Quantity, hold.ExpiresAt, hold.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

// DeleteOwned deletes a hold owned by userID on slotID and returns it, or nil
// when no such hold exists
func (r *HoldRepository) DeleteOwned(ctx context.Context, holdID, slotID, userID uuid.UUID) (*models.BookingHold, error) {
	query := `
		DELETE FROM booking_holds
		WHERE id = $1 AND time_slot_id = $2 AND user_id = $3
		RETURNING id, user_id, time_slot_id, slot_date, quantity, expires_at, created_at`

	var hold models.BookingHold
	err := sqlx.GetContext(ctx, r.db, &hold, query, holdID, slotID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release hold: %w", err)
	}
	return &hold, nil
}

// DeleteForUserSlot drops every hold userID has on slotID. Called once a
// capacity booking consumes them.
func (r *HoldRepository) DeleteForUserSlot(ctx context.Context, userID, slotID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_holds WHERE user_id = $1 AND time_slot_id = $2`, userID, slotID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user holds: %w", err)
	}
	return result.RowsAffected()
}
