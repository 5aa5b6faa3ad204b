package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/uptwn/booking-backend/internal/config"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/events"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

// T0 is the reference instant used across service tests
var T0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db        *sqlx.DB
	mock      sqlmock.Sqlmock
	repos     BookingRepos
	maint     *database.MaintenanceRepository
	config    config.BookingConfig
	clock     *utils.FixedClock
	logger    *logrus.Logger
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	db := sqlx.NewDb(rawDB, "sqlmock")
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &testEnv{
		db:   db,
		mock: mock,
		repos: BookingRepos{
			Listings:      database.NewListingRepository(db),
			Inventory:     database.NewInventoryRepository(db),
			Holds:         database.NewHoldRepository(db),
			Bookings:      database.NewBookingRepository(db),
			Notifications: database.NewNotificationRepository(db),
		},
		maint: database.NewMaintenanceRepository(db),
		config: config.BookingConfig{
			NumberPrefix:           "UPT",
			SeatLockTTL:            10 * time.Minute,
			HoldTTL:                10 * time.Minute,
			MaxSeatsPerLock:        10,
			CoverCharge:            100,
			ReserveDiscountPercent: 10,
		},
		clock:     &utils.FixedClock{T: now},
		logger:    logger,
		publisher: &recordingPublisher{},
	}
}

func (e *testEnv) seatLockService() *SeatLockService {
	return NewSeatLockService(e.db, e.repos.Inventory, e.config, e.clock, e.logger)
}

func (e *testEnv) holdService() *CapacityHoldService {
	return NewCapacityHoldService(e.db, e.repos.Inventory, e.repos.Holds, e.repos.Bookings, e.config, e.clock, e.logger)
}

func (e *testEnv) bookingService() *BookingService {
	return NewBookingService(e.db, e.repos, e.publisher, e.config, e.clock, e.logger)
}

func (e *testEnv) restaurantService() *RestaurantBookingService {
	return NewRestaurantBookingService(e.db, e.repos, e.publisher, e.config, e.clock, e.logger)
}

type recordingPublisher struct {
	events []events.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.BookingEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// ============================================================================
// ROW BUILDERS
// ============================================================================

var slotCols = []string{
	"id", "listing_id", "hall_id", "slot_date", "start_time", "end_time", "capacity",
	"booked_count", "price_override", "slot_type", "discount_percent", "is_active",
}

func slotRows(s models.TimeSlot) *sqlmock.Rows {
	var hallID, slotDate interface{}
	if s.HallID != nil {
		hallID = s.HallID.String()
	}
	if s.SlotDate != nil {
		slotDate = *s.SlotDate
	}
	var price, slotType, discount interface{}
	if s.PriceOverride != nil {
		price = *s.PriceOverride
	}
	if s.SlotType != nil {
		slotType = *s.SlotType
	}
	if s.DiscountPercent != nil {
		discount = *s.DiscountPercent
	}
	return sqlmock.NewRows(slotCols).AddRow(
		s.ID.String(), s.ListingID.String(), hallID, slotDate, s.StartTime, nil, s.Capacity,
		s.BookedCount, price, slotType, discount, true,
	)
}

var listingCols = []string{
	"id", "title_id", "venue_id", "city", "price", "currency", "start_datetime",
	"end_datetime", "total_capacity", "booked_count", "status", "title_name", "category",
}

func listingRows(l models.Listing) *sqlmock.Rows {
	var price, total interface{}
	if l.Price != nil {
		price = *l.Price
	}
	if l.TotalCapacity != nil {
		total = *l.TotalCapacity
	}
	return sqlmock.NewRows(listingCols).AddRow(
		l.ID.String(), uuid.New().String(), nil, nil, price, "LKR", nil,
		nil, total, l.BookedCount, "active", l.TitleName, string(l.Category),
	)
}

var availabilityCols = []string{"id", "time_slot_id", "seat_id", "status", "locked_by", "locked_until"}

func lockedRow(rows *sqlmock.Rows, slotID, seatID, owner uuid.UUID, until time.Time) *sqlmock.Rows {
	return rows.AddRow(uuid.New().String(), slotID.String(), seatID.String(), "locked", owner.String(), until)
}

var bookingCols = []string{
	"id", "user_id", "listing_id", "time_slot_id", "booking_number", "quantity",
	"total_amount", "status", "booking_date", "event_date", "notes", "party_size",
	"booking_type", "cover_charge_paid", "idempotency_key", "cancelled_at", "created_at",
}

func bookingRows(b models.Booking) *sqlmock.Rows {
	var slotID, bookingType interface{}
	if b.TimeSlotID != nil {
		slotID = b.TimeSlotID.String()
	}
	if b.BookingType != nil {
		bookingType = string(*b.BookingType)
	}
	return sqlmock.NewRows(bookingCols).AddRow(
		b.ID.String(), b.UserID.String(), b.ListingID.String(), slotID, b.BookingNumber, b.Quantity,
		b.TotalAmount, string(b.Status), b.BookingDate, nil, nil, nil,
		bookingType, nil, nil, nil, b.CreatedAt,
	)
}

// expectDetail mocks the summary reads of loadDetail
func expectDetail(mock sqlmock.Sqlmock, withSlot bool) {
	mock.ExpectQuery(`LEFT JOIN venues`).
		WillReturnRows(sqlmock.NewRows([]string{"title", "image_url", "category", "venue_name", "venue_city"}).
			AddRow("Dune: Part Two", nil, "movies", "Scope Cinemas", "Colombo"))
	if !withSlot {
		return
	}
	mock.ExpectQuery(`FROM time_slots ts LEFT JOIN halls h`).
		WillReturnRows(sqlmock.NewRows([]string{"slot_date", "start_time", "end_time", "hall_id", "hall_name"}).
			AddRow(T0, "19:00:00", nil, nil, "Hall 1"))
	mock.ExpectQuery(`FROM booking_seats bs`).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "row_label", "seat_number", "category", "price"}))
}

func ptr[T any](v T) *T { return &v }
