package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var slotColumns = []string{
	"id", "listing_id", "hall_id", "slot_date", "start_time", "end_time", "capacity",
	"booked_count", "price_override", "slot_type", "discount_percent", "is_active",
}

func TestLockActiveTimeSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		slotID := uuid.New()
		listingID := uuid.New()
		hallID := uuid.New()
		date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`FROM time_slots WHERE id = \$1 AND is_active = TRUE FOR UPDATE`).
			WithArgs(slotID).
			WillReturnRows(sqlmock.NewRows(slotColumns).AddRow(
				slotID.String(), listingID.String(), hallID.String(), date, "19:00:00", nil, 100,
				12, nil, nil, nil, true,
			))

		slot, err := repo.LockActiveTimeSlot(ctx, slotID)
		require.NoError(t, err)
		require.NotNil(t, slot)
		assert.Equal(t, slotID, slot.ID)
		assert.True(t, slot.HasHall())
		assert.False(t, slot.IsReusable())
		assert.Equal(t, 12, slot.BookedCount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		slotID := uuid.New()

		mock.ExpectQuery(`FROM time_slots`).
			WithArgs(slotID).
			WillReturnError(sql.ErrNoRows)

		slot, err := repo.LockActiveTimeSlot(ctx, slotID)
		assert.NoError(t, err)
		assert.Nil(t, slot)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`FROM time_slots`).
			WillReturnError(fmt.Errorf("connection reset"))

		slot, err := repo.LockActiveTimeSlot(ctx, uuid.New())
		assert.Error(t, err)
		assert.Nil(t, slot)
		assert.Contains(t, err.Error(), "failed to get time slot")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertSeatLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)

	slotID, seatID, userID := uuid.New(), uuid.New(), uuid.New()
	until := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	mock.ExpectExec(`ON CONFLICT \(time_slot_id, seat_id\) DO UPDATE`).
		WithArgs(sqlmock.AnyArg(), slotID, seatID, userID, until).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertSeatLock(context.Background(), slotID, seatID, userID, until))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseUserLocks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)
	ctx := context.Background()

	t.Run("Returns Released Seats", func(t *testing.T) {
		slotID, userID := uuid.New(), uuid.New()
		a1, a2 := uuid.New(), uuid.New()

		mock.ExpectQuery(`UPDATE seat_availability .* RETURNING seat_id`).
			WithArgs(slotID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow(a1.String()).AddRow(a2.String()))

		released, err := repo.ReleaseUserLocks(ctx, slotID, userID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{a1, a2}, released)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing Held", func(t *testing.T) {
		mock.ExpectQuery(`RETURNING seat_id`).
			WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))

		released, err := repo.ReleaseUserLocks(ctx, uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.NotNil(t, released)
		assert.Empty(t, released)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSlotCounters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)
	ctx := context.Background()
	slotID := uuid.New()

	mock.ExpectExec(`SET booked_count = booked_count \+ \$1`).
		WithArgs(3, slotID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET booked_count = GREATEST\(0, booked_count - \$1\)`).
		WithArgs(3, slotID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementSlotBooked(ctx, slotID, 3))
	require.NoError(t, repo.DecrementSlotBooked(ctx, slotID, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUpcomingTimeSlots_DateFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)

	listingID := uuid.New()
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND ts.slot_date = \$4 ORDER BY ts.slot_date, ts.start_time`).
		WithArgs(listingID, today, "12:00:00", date).
		WillReturnRows(sqlmock.NewRows(append(slotColumns, "hall_name")).AddRow(
			uuid.New().String(), listingID.String(), nil, date, "18:30:00", nil, 50,
			0, nil, nil, nil, true, nil,
		))

	slots, err := repo.ListUpcomingTimeSlots(context.Background(), listingID, today, "12:00:00", &date)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "18:30:00", slots[0].StartTime)
	assert.False(t, slots[0].HasHall())

	assert.NoError(t, mock.ExpectationsWereMet())
}
