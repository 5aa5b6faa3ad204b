package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/uptwn/booking-backend/internal/models"
)

// BookingRepository handles bookings and booking_seats
type BookingRepository struct {
	db sqlx.ExtContext
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *BookingRepository) WithTx(tx *sqlx.Tx) *BookingRepository {
	return &BookingRepository{db: tx}
}

const bookingColumns = `
	id, user_id, listing_id, time_slot_id, booking_number, quantity,
	total_amount, status, booking_date, event_date, notes, party_size,
	booking_type, cover_charge_paid, idempotency_key, cancelled_at, created_at`

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsIdempotencyKeyViolation reports whether err is a unique_violation on the
// (user_id, idempotency_key) index rather than on booking_number
func IsIdempotencyKeyViolation(err error) bool {
	var pqErr *pq.Error
	return IsUniqueViolation(err) && errors.As(err, &pqErr) &&
		strings.Contains(pqErr.Constraint, "idempotency_key")
}

// ============================================================================
// BOOKING NUMBERS
// ============================================================================

// NumberExists reports whether a booking number is already taken
func (r *BookingRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_number = $1)`, number)
	if err != nil {
		return false, fmt.Errorf("failed to check booking number: %w", err)
	}
	return exists, nil
}

// ============================================================================
// WRITES
// ============================================================================

// Create inserts a booking. ID, BookingDate and CreatedAt must be set.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, user_id, listing_id, time_slot_id, booking_number, quantity,
			total_amount, status, booking_date, event_date, notes, party_size,
			booking_type, cover_charge_paid, idempotency_key, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.ListingID, b.TimeSlotID, b.BookingNumber, b.Quantity,
		b.TotalAmount, b.Status, b.BookingDate, b.EventDate, b.Notes, b.PartySize,
		b.BookingType, b.CoverChargePaid, b.IdempotencyKey, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// AddSeats links seats to a booking
func (r *BookingRepository) AddSeats(ctx context.Context, bookingID, slotID uuid.UUID, seatIDs []uuid.UUID) error {
	query := `INSERT INTO booking_seats (id, booking_id, seat_id, time_slot_id) VALUES ($1, $2, $3, $4)`
	for _, seatID := range seatIDs {
		if _, err := r.db.ExecContext(ctx, query, uuid.New(), bookingID, seatID, slotID); err != nil {
			return fmt.Errorf("failed to add booking seat %s: %w", seatID, err)
		}
	}
	return nil
}

// MarkCancelled sets status cancelled and stamps cancelled_at
func (r *BookingRepository) MarkCancelled(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', cancelled_at = $1 WHERE id = $2`, at, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetByIDForUser returns the user's booking, or nil
func (r *BookingRepository) GetByIDForUser(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2`, bookingID, userID)
}

// LockByIDForUser is GetByIDForUser holding the booking row lock
func (r *BookingRepository) LockByIDForUser(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2 FOR UPDATE`, bookingID, userID)
}

// GetByNumberForUser returns the user's booking with that number, or nil
func (r *BookingRepository) GetByNumberForUser(ctx context.Context, number string, userID uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE booking_number = $1 AND user_id = $2`, number, userID)
}

// GetByIdempotencyKey returns the booking previously created with key, or nil
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
}

func (r *BookingRepository) getBooking(ctx context.Context, query string, args ...interface{}) (*models.Booking, error) {
	var booking models.Booking
	err := sqlx.GetContext(ctx, r.db, &booking, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListForUser returns a page of the user's bookings, newest first, and the
// total row count for the filter
func (r *BookingRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter models.BookingListFilter) ([]models.Booking, int, error) {
	where := ` WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Status != nil {
		where += ` AND status = $2`
		args = append(args, *filter.Status)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM bookings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := `SELECT` + bookingColumns + ` FROM bookings` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	bookings := []models.Booking{}
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

// SumActiveQuantityForSlotDate totals the quantity of non-cancelled bookings
// of a reusable slot on one calendar date. A restaurant booking is one table.
func (r *BookingRepository) SumActiveQuantityForSlotDate(ctx context.Context, slotID uuid.UUID, date time.Time) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, r.db, &total,
		`SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE time_slot_id = $1 AND event_date = $2 AND status <> 'cancelled'`,
		slotID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to sum slot bookings: %w", err)
	}
	return total, nil
}

// ============================================================================
// DETAIL SUMMARIES
// ============================================================================

type listingVenueRow struct {
	Title     string  `db:"title"`
	ImageURL  *string `db:"image_url"`
	Category  *string `db:"category"`
	VenueName *string `db:"venue_name"`
	VenueCity *string `db:"venue_city"`
}

// GetListingSummary returns the title and venue blocks of a booking response.
// The venue is nil when the listing has none.
func (r *BookingRepository) GetListingSummary(ctx context.Context, listingID uuid.UUID) (*models.ListingSummary, *models.VenueSummary, error) {
	query := `
		SELECT t.title, t.image_url, t.category, v.name AS venue_name, v.city AS venue_city
		FROM listings l
		JOIN titles t ON t.id = l.title_id
		LEFT JOIN venues v ON v.id = l.venue_id
		WHERE l.id = $1`

	var row listingVenueRow
	err := sqlx.GetContext(ctx, r.db, &row, query, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get listing summary: %w", err)
	}

	listing := &models.ListingSummary{Title: row.Title, ImageURL: row.ImageURL, Category: row.Category}
	var venue *models.VenueSummary
	if row.VenueName != nil {
		venue = &models.VenueSummary{Name: *row.VenueName, City: row.VenueCity}
	}
	return listing, venue, nil
}

// GetTimeSlotSummary returns the time slot block of a booking response
func (r *BookingRepository) GetTimeSlotSummary(ctx context.Context, slotID uuid.UUID) (*models.TimeSlotSummary, error) {
	query := `
		SELECT ts.slot_date, ts.start_time, ts.end_time, ts.hall_id, h.name AS hall_name
		FROM time_slots ts
		LEFT JOIN halls h ON h.id = ts.hall_id
		WHERE ts.id = $1`

	var summary models.TimeSlotSummary
	err := sqlx.GetContext(ctx, r.db, &summary, query, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time slot summary: %w", err)
	}
	return &summary, nil
}

// GetSeatSummaries returns the seats of a booking in row order
func (r *BookingRepository) GetSeatSummaries(ctx context.Context, bookingID uuid.UUID) ([]models.BookingSeatSummary, error) {
	query := `
		SELECT s.id AS seat_id, s.row_label, s.seat_number, s.category, s.price
		FROM booking_seats bs
		JOIN seats s ON s.id = bs.seat_id
		WHERE bs.booking_id = $1
		ORDER BY s.row_label, s.seat_number`

	seats := []models.BookingSeatSummary{}
	if err := sqlx.SelectContext(ctx, r.db, &seats, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get booking seats: %w", err)
	}
	return seats, nil
}
