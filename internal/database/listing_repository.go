package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/uptwn/booking-backend/internal/models"
)

// ListingRepository reads listings and maintains their booked_count
type ListingRepository struct {
	db sqlx.ExtContext
}

// NewListingRepository creates a new ListingRepository
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ListingRepository) WithTx(tx *sqlx.Tx) *ListingRepository {
	return &ListingRepository{db: tx}
}

const listingSelect = `
	SELECT l.id, l.title_id, l.venue_id, l.city, l.price, l.currency,
		   l.start_datetime, l.end_datetime, l.total_capacity, l.booked_count,
		   l.status, t.title AS title_name, t.category
	FROM listings l
	JOIN titles t ON t.id = l.title_id`

// GetActiveListing returns an active listing, or nil if missing or inactive
func (r *ListingRepository) GetActiveListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	return r.getListing(ctx, listingSelect+` WHERE l.id = $1 AND l.status = 'active'`, listingID)
}

// LockActiveListing is GetActiveListing holding the listing row lock. Used as
// the serialization point for bookings that have no time slot.
func (r *ListingRepository) LockActiveListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	return r.getListing(ctx, listingSelect+` WHERE l.id = $1 AND l.status = 'active' FOR UPDATE OF l`, listingID)
}

func (r *ListingRepository) getListing(ctx context.Context, query string, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := sqlx.GetContext(ctx, r.db, &listing, query, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// IncrementBooked adds qty to the listing's booked_count
func (r *ListingRepository) IncrementBooked(ctx context.Context, listingID uuid.UUID, qty int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE listings SET booked_count = booked_count + $1 WHERE id = $2`, qty, listingID)
	if err != nil {
		return fmt.Errorf("failed to increment listing booked count: %w", err)
	}
	return nil
}

// DecrementBooked subtracts qty from booked_count, floored at zero
func (r *ListingRepository) DecrementBooked(ctx context.Context, listingID uuid.UUID, qty int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE listings SET booked_count = GREATEST(0, booked_count - $1) WHERE id = $2`, qty, listingID)
	if err != nil {
		return fmt.Errorf("failed to decrement listing booked count: %w", err)
	}
	return nil
}
