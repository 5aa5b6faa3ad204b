package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptwn/booking-backend/internal/models"
)

func hallSlot() models.TimeSlot {
	hallID := uuid.New()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return models.TimeSlot{
		ID:        uuid.New(),
		ListingID: uuid.New(),
		HallID:    &hallID,
		SlotDate:  &date,
		StartTime: "19:00:00",
		Capacity:  120,
	}
}

// expectLockPreamble mocks the reads LockSeats makes before deciding
func expectLockPreamble(mock sqlmock.Sqlmock, slot models.TimeSlot, seatCount int, availability *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM time_slots WHERE id = \$1 AND is_active = TRUE FOR UPDATE`).
		WithArgs(slot.ID).
		WillReturnRows(slotRows(slot))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM seats WHERE hall_id`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(seatCount))
	mock.ExpectExec(`AND status = 'locked' AND locked_until < \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM seat_availability WHERE time_slot_id = \$1 AND seat_id = ANY\(\$2\) FOR UPDATE`).
		WillReturnRows(availability)
}

func TestLockSeats_HeldByAnotherUser(t *testing.T) {
	// U1 locked A1 at T0; U2 tries five minutes later
	env := newTestEnv(t, T0.Add(5*time.Minute))
	slot := hallSlot()
	a1 := uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	rows := lockedRow(sqlmock.NewRows(availabilityCols), slot.ID, a1, u1, T0.Add(10*time.Minute))
	expectLockPreamble(env.mock, slot, 1, rows)
	env.mock.ExpectRollback()

	resp, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{a1}, u2)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, ErrKindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "seat "+a1.String()+" is locked by another user")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_ExpiredLockIsReclaimed(t *testing.T) {
	// Same lock, but U2 arrives after the 10 minute TTL
	now := T0.Add(11 * time.Minute)
	env := newTestEnv(t, now)
	slot := hallSlot()
	a1 := uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	rows := lockedRow(sqlmock.NewRows(availabilityCols), slot.ID, a1, u1, T0.Add(10*time.Minute))
	expectLockPreamble(env.mock, slot, 1, rows)
	env.mock.ExpectExec(`INSERT INTO seat_availability`).
		WithArgs(sqlmock.AnyArg(), slot.ID, a1, u2, now.Add(10*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	resp, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{a1}, u2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1}, resp.LockedSeats)
	assert.Equal(t, now.Add(10*time.Minute), resp.LockedUntil)
	assert.Equal(t, 600, resp.TTLSeconds)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_SameOwnerExtends(t *testing.T) {
	now := T0.Add(4 * time.Minute)
	env := newTestEnv(t, now)
	slot := hallSlot()
	a1, a2 := uuid.New(), uuid.New()
	owner := uuid.New()

	// A1 already held by the caller, A2 has no row yet
	rows := lockedRow(sqlmock.NewRows(availabilityCols), slot.ID, a1, owner, T0.Add(10*time.Minute))
	expectLockPreamble(env.mock, slot, 2, rows)
	for _, seat := range []uuid.UUID{a1, a2} {
		env.mock.ExpectExec(`ON CONFLICT \(time_slot_id, seat_id\) DO UPDATE`).
			WithArgs(sqlmock.AnyArg(), slot.ID, seat, owner, now.Add(10*time.Minute)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	env.mock.ExpectCommit()

	resp, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{a1, a2}, owner)
	require.NoError(t, err)
	assert.Len(t, resp.LockedSeats, 2)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_BookedSeat(t *testing.T) {
	env := newTestEnv(t, T0)
	slot := hallSlot()
	a1 := uuid.New()

	rows := sqlmock.NewRows(availabilityCols).AddRow(uuid.New().String(), slot.ID.String(), a1.String(), "booked", nil, nil)
	expectLockPreamble(env.mock, slot, 1, rows)
	env.mock.ExpectRollback()

	_, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{a1}, uuid.New())
	require.Error(t, err)
	assert.Equal(t, ErrKindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "is already booked")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_Validation(t *testing.T) {
	env := newTestEnv(t, T0)
	svc := env.seatLockService()
	seat := uuid.New()

	tooMany := make([]uuid.UUID, 11)
	for i := range tooMany {
		tooMany[i] = uuid.New()
	}

	tests := []struct {
		name    string
		seats   []uuid.UUID
		message string
	}{
		{"empty", nil, "at least one seat"},
		{"too many", tooMany, "cannot lock more than 10 seats"},
		{"duplicates", []uuid.UUID{seat, seat}, "duplicate seat id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LockSeats(context.Background(), uuid.New(), tt.seats, uuid.New())
			require.Error(t, err)
			assert.Equal(t, ErrKindInvalidArgument, KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_SeatOutsideHall(t *testing.T) {
	env := newTestEnv(t, T0)
	slot := hallSlot()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`FROM time_slots`).WillReturnRows(slotRows(slot))
	env.mock.ExpectQuery(`FROM seats WHERE hall_id`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	env.mock.ExpectRollback()

	_, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{uuid.New(), uuid.New()}, uuid.New())
	require.Error(t, err)
	assert.Equal(t, ErrKindInvalidArgument, KindOf(err))
	assert.Contains(t, err.Error(), "do not belong to this hall")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLockSeats_SlotWithoutHall(t *testing.T) {
	env := newTestEnv(t, T0)
	slot := hallSlot()
	slot.HallID = nil

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`FROM time_slots`).WillReturnRows(slotRows(slot))
	env.mock.ExpectRollback()

	_, err := env.seatLockService().LockSeats(context.Background(), slot.ID, []uuid.UUID{uuid.New()}, uuid.New())
	require.Error(t, err)
	assert.Equal(t, ErrKindInvalidArgument, KindOf(err))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReleaseLocks_Idempotent(t *testing.T) {
	env := newTestEnv(t, T0)
	slot := hallSlot()
	user := uuid.New()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`FROM time_slots WHERE id = \$1 FOR UPDATE`).WillReturnRows(slotRows(slot))
	env.mock.ExpectQuery(`RETURNING seat_id`).
		WithArgs(slot.ID, user).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))
	env.mock.ExpectCommit()

	resp, err := env.seatLockService().ReleaseLocks(context.Background(), slot.ID, user)
	require.NoError(t, err)
	assert.NotNil(t, resp.ReleasedSeats)
	assert.Empty(t, resp.ReleasedSeats)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGetSeatMap(t *testing.T) {
	now := T0
	env := newTestEnv(t, now)
	slot := hallSlot()
	a1, a2, b1 := uuid.New(), uuid.New(), uuid.New()
	other := uuid.New()

	env.mock.ExpectQuery(`FROM time_slots WHERE id = \$1 AND is_active = TRUE`).WillReturnRows(slotRows(slot))
	env.mock.ExpectQuery(`FROM halls WHERE id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "venue_id", "name", "screen_type", "capacity", "is_active"}).
			AddRow(slot.HallID.String(), uuid.New().String(), "Hall 1", "IMAX", 120, true))
	env.mock.ExpectExec(`UPDATE seat_availability`).WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectQuery(`FROM seats WHERE hall_id = \$1 ORDER BY row_label, seat_number`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "row_label", "seat_number", "category", "price", "is_aisle", "is_accessible"}).
			AddRow(a1.String(), slot.HallID.String(), "A", 1, "platinum", 1500.0, false, false).
			AddRow(a2.String(), slot.HallID.String(), "A", 2, "platinum", 1500.0, true, false).
			AddRow(b1.String(), slot.HallID.String(), "B", 1, "gold", 1000.0, false, true))
	availability := sqlmock.NewRows(availabilityCols).
		AddRow(uuid.New().String(), slot.ID.String(), a2.String(), "booked", nil, nil)
	availability = lockedRow(availability, slot.ID, b1, other, now.Add(3*time.Minute))
	env.mock.ExpectQuery(`FROM seat_availability WHERE time_slot_id = \$1`).WillReturnRows(availability)

	seatMap, err := env.seatLockService().GetSeatMap(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hall 1", seatMap.Hall.Name)
	require.Len(t, seatMap.Rows, 2)

	rowA := seatMap.Rows[0]
	assert.Equal(t, "A", rowA.Label)
	assert.Equal(t, "platinum", rowA.Category)
	require.Len(t, rowA.Seats, 2)
	assert.Equal(t, models.SeatStatusAvailable, rowA.Seats[0].Status)
	assert.Equal(t, models.SeatStatusBooked, rowA.Seats[1].Status)
	assert.True(t, rowA.Seats[1].IsAisle)

	rowB := seatMap.Rows[1]
	assert.Equal(t, 1000.0, rowB.Price)
	assert.Equal(t, models.SeatStatusLocked, rowB.Seats[0].Status)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGetSeatMap_NoHall(t *testing.T) {
	env := newTestEnv(t, T0)
	slot := hallSlot()
	slot.HallID = nil

	env.mock.ExpectQuery(`FROM time_slots`).WillReturnRows(slotRows(slot))

	_, err := env.seatLockService().GetSeatMap(context.Background(), slot.ID)
	require.Error(t, err)
	assert.Equal(t, ErrKindInvalidArgument, KindOf(err))
}
