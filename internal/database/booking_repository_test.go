package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptwn/booking-backend/internal/models"
)

var bookingRowColumns = []string{
	"id", "user_id", "listing_id", "time_slot_id", "booking_number", "quantity",
	"total_amount", "status", "booking_date", "event_date", "notes", "party_size",
	"booking_type", "cover_charge_paid", "idempotency_key", "cancelled_at", "created_at",
}

func TestNumberExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("UPT-AAAA1111").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.NumberExists(context.Background(), "UPT-AAAA1111")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIdempotencyKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		bookingID := uuid.New()
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`FROM bookings WHERE user_id = \$1 AND idempotency_key = \$2`).
			WithArgs(userID, "key-1").
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
				bookingID.String(), userID.String(), uuid.New().String(), nil, "UPT-ZZ99ZZ99", 2,
				500.0, "confirmed", now, nil, nil, nil,
				nil, nil, "key-1", nil, now,
			))

		booking, err := repo.GetByIdempotencyKey(ctx, userID, "key-1")
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.Equal(t, bookingID, booking.ID)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
		assert.False(t, booking.IsRestaurant())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(`idempotency_key`).WillReturnError(sql.ErrNoRows)

		booking, err := repo.GetByIdempotencyKey(ctx, userID, "key-2")
		assert.NoError(t, err)
		assert.Nil(t, booking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	userID := uuid.New()
	status := models.BookingStatusCancelled

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE user_id = \$1 AND status = \$2`).
		WithArgs(userID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(userID, status, 10, 20).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	bookings, total, err := repo.ListForUser(context.Background(), userID, models.BookingListFilter{
		Status: &status, Page: 3, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	bookingID, slotID := uuid.New(), uuid.New()
	seats := []uuid.UUID{uuid.New(), uuid.New()}

	for _, seatID := range seats {
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WithArgs(sqlmock.AnyArg(), bookingID, seatID, slotID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, repo.AddSeats(context.Background(), bookingID, slotID, seats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetListingSummary_NoVenue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	listingID := uuid.New()

	mock.ExpectQuery(`LEFT JOIN venues`).
		WithArgs(listingID).
		WillReturnRows(sqlmock.NewRows([]string{"title", "image_url", "category", "venue_name", "venue_city"}).
			AddRow("Jazz Night", nil, "events", nil, nil))

	listing, venue, err := repo.GetListingSummary(context.Background(), listingID)
	require.NoError(t, err)
	require.NotNil(t, listing)
	assert.Equal(t, "Jazz Night", listing.Title)
	assert.Nil(t, venue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("failed to create booking: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("boom")))
}

func TestIsIdempotencyKeyViolation(t *testing.T) {
	keyErr := &pq.Error{Code: "23505", Constraint: "bookings_user_id_idempotency_key_key"}
	numberErr := &pq.Error{Code: "23505", Constraint: "bookings_booking_number_key"}

	assert.True(t, IsIdempotencyKeyViolation(fmt.Errorf("failed to create booking: %w", keyErr)))
	assert.False(t, IsIdempotencyKeyViolation(numberErr))
	assert.True(t, IsUniqueViolation(numberErr))
	assert.False(t, IsIdempotencyKeyViolation(&pq.Error{Code: "23503", Constraint: "bookings_user_id_idempotency_key_key"}))
}
