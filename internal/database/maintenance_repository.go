package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uptwn/booking-backend/internal/models"
)

// MaintenanceRepository holds the set-based housekeeping queries run by the
// sweeper and the cron jobs
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository creates a new MaintenanceRepository
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// ============================================================================
// SWEEPER
// ============================================================================

// DeactivatePastSlots deactivates dated slots that have already started.
// Reusable slots (slot_date IS NULL) never match.
func (r *MaintenanceRepository) DeactivatePastSlots(ctx context.Context, today time.Time, timeOfDay string) (int64, error) {
	query := `
		UPDATE time_slots
		SET is_active = FALSE
		WHERE is_active = TRUE
		  AND slot_date IS NOT NULL
		  AND (slot_date < $1 OR (slot_date = $1 AND start_time < $2))`

	result, err := r.db.ExecContext(ctx, query, today, timeOfDay)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate past slots: %w", err)
	}
	return result.RowsAffected()
}

// ReleaseExpiredLocks resets every seat lock whose TTL has passed
func (r *MaintenanceRepository) ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE seat_availability
		SET status = 'available', locked_by = NULL, locked_until = NULL
		WHERE status = 'locked' AND locked_until < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired locks: %w", err)
	}
	return result.RowsAffected()
}

// PurgeExpiredHolds deletes every expired capacity hold
func (r *MaintenanceRepository) PurgeExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM booking_holds WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired holds: %w", err)
	}
	return result.RowsAffected()
}

// ============================================================================
// SEAT AVAILABILITY CLEANUP
// ============================================================================

// DeleteStaleAvailability removes rows whose slot is inactive or in the past
func (r *MaintenanceRepository) DeleteStaleAvailability(ctx context.Context, today time.Time) (int64, error) {
	query := `
		DELETE FROM seat_availability sa
		USING time_slots ts
		WHERE sa.time_slot_id = ts.id
		  AND (ts.is_active = FALSE OR ts.slot_date < $1)`

	result, err := r.db.ExecContext(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale seat availability: %w", err)
	}
	return result.RowsAffected()
}

// DeleteRedundantAvailability removes available rows. A missing row already
// means available.
func (r *MaintenanceRepository) DeleteRedundantAvailability(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM seat_availability WHERE status = 'available'`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete redundant seat availability: %w", err)
	}
	return result.RowsAffected()
}

// GetAvailabilityStats counts seat_availability rows by status and staleness
func (r *MaintenanceRepository) GetAvailabilityStats(ctx context.Context, today time.Time) (*models.SeatAvailabilityStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_rows,
			COUNT(*) FILTER (WHERE sa.status = 'available') AS available,
			COUNT(*) FILTER (WHERE sa.status = 'locked') AS locked,
			COUNT(*) FILTER (WHERE sa.status = 'booked') AS booked,
			COUNT(*) FILTER (WHERE ts.is_active = FALSE OR ts.slot_date < $1) AS stale_past_slot_rows
		FROM seat_availability sa
		JOIN time_slots ts ON ts.id = sa.time_slot_id`

	var stats models.SeatAvailabilityStats
	if err := sqlx.GetContext(ctx, r.db, &stats, query, today); err != nil {
		return nil, fmt.Errorf("failed to get seat availability stats: %w", err)
	}
	stats.RedundantCleanup = stats.Available
	return &stats, nil
}

// ============================================================================
// LISTING EXPIRY
// ============================================================================

// ExpireSoldOutEventListings expires active events listings that once had
// time slots but have no active one left
func (r *MaintenanceRepository) ExpireSoldOutEventListings(ctx context.Context) (int64, error) {
	query := `
		UPDATE listings l
		SET status = 'expired'
		FROM titles t
		WHERE t.id = l.title_id
		  AND t.category = 'events'
		  AND l.status = 'active'
		  AND EXISTS (SELECT 1 FROM time_slots ts WHERE ts.listing_id = l.id)
		  AND NOT EXISTS (SELECT 1 FROM time_slots ts WHERE ts.listing_id = l.id AND ts.is_active = TRUE)`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to expire event listings: %w", err)
	}
	return result.RowsAffected()
}

// ExpireEndedListings expires active listings whose end_datetime has passed
// and deactivates their slots, in one transaction
func (r *MaintenanceRepository) ExpireEndedListings(ctx context.Context, now time.Time) (listings int64, slots int64, err error) {
	err = RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		slotResult, err := tx.ExecContext(ctx, `
			UPDATE time_slots
			SET is_active = FALSE
			WHERE is_active = TRUE
			  AND listing_id IN (
				SELECT id FROM listings
				WHERE status = 'active' AND end_datetime IS NOT NULL AND end_datetime < $1
			  )`, now)
		if err != nil {
			return fmt.Errorf("failed to deactivate ended listing slots: %w", err)
		}
		if slots, err = slotResult.RowsAffected(); err != nil {
			return err
		}

		listingResult, err := tx.ExecContext(ctx, `
			UPDATE listings
			SET status = 'expired'
			WHERE status = 'active' AND end_datetime IS NOT NULL AND end_datetime < $1`, now)
		if err != nil {
			return fmt.Errorf("failed to expire ended listings: %w", err)
		}
		listings, err = listingResult.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return listings, slots, nil
}
