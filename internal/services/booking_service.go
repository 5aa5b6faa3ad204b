package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/config"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/events"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

const (
	maxBookingNumberAttempts = 10
	maxBookingsPageSize      = 50
	defaultBookingsPageSize  = 10
)

// errIdempotencyRace marks a unique violation on the idempotency key: a
// concurrent request with the same key committed first
var errIdempotencyRace = errors.New("idempotency key already used")

// BookingRepos groups the repositories the booking flows write through
type BookingRepos struct {
	Listings      *database.ListingRepository
	Inventory     *database.InventoryRepository
	Holds         *database.HoldRepository
	Bookings      *database.BookingRepository
	Notifications *database.NotificationRepository
}

func (r BookingRepos) withTx(tx *sqlx.Tx) BookingRepos {
	return BookingRepos{
		Listings:      r.Listings.WithTx(tx),
		Inventory:     r.Inventory.WithTx(tx),
		Holds:         r.Holds.WithTx(tx),
		Bookings:      r.Bookings.WithTx(tx),
		Notifications: r.Notifications.WithTx(tx),
	}
}

// BookingService confirms, reads and cancels bookings
type BookingService struct {
	db        *sqlx.DB
	repos     BookingRepos
	publisher events.Publisher
	config    config.BookingConfig
	clock     utils.Clock
	logger    *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db *sqlx.DB,
	repos BookingRepos,
	publisher events.Publisher,
	cfg config.BookingConfig,
	clock utils.Clock,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:        db,
		repos:     repos,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		logger:    logger,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking converts the caller's seat locks (SeatIDs) or a plain
// quantity into a confirmed booking. The bool result is true when an earlier
// booking with the same idempotency key is returned instead.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req models.CreateBookingRequest, idempotencyKey string) (*models.BookingDetail, bool, error) {
	if idempotencyKey != "" {
		existing, err := s.repos.Bookings.GetByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, false, internalError("failed to check idempotency key", err)
		}
		if existing != nil {
			detail, err := s.loadDetail(ctx, existing)
			return detail, true, err
		}
	}

	if err := validateBookingRequest(req); err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	booking := &models.Booking{
		ID:          uuid.New(),
		UserID:      userID,
		ListingID:   req.ListingID,
		TimeSlotID:  req.TimeSlotID,
		Status:      models.BookingStatusConfirmed,
		BookingDate: now,
		Notes:       req.Notes,
		CreatedAt:   now,
	}
	if req.EventDate != nil {
		date, err := utils.ParseDate(*req.EventDate)
		if err != nil {
			return nil, false, newInvalid("event_date must be YYYY-MM-DD")
		}
		booking.EventDate = &date
	}
	if idempotencyKey != "" {
		booking.IdempotencyKey = &idempotencyKey
	}

	var listingTitle string
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := s.repos.withTx(tx)

		listing, slot, err := lockBookingTarget(ctx, repos, req.ListingID, req.TimeSlotID)
		if err != nil {
			return err
		}
		listingTitle = listing.TitleName

		switch {
		case len(req.SeatIDs) > 0:
			err = s.priceSeatBooking(ctx, repos, booking, listing, slot, req.SeatIDs, now)
		case slot != nil && slot.IsReusable():
			if err = checkReusableCapacity(ctx, repos, booking, slot, req.Quantity, now); err == nil {
				err = priceCapacityBooking(booking, listing, slot, req.Quantity)
			}
		default:
			err = priceCapacityBooking(booking, listing, slot, req.Quantity)
		}
		if err != nil {
			return err
		}

		if booking.BookingNumber, err = generateBookingNumber(ctx, repos.Bookings, s.config.NumberPrefix); err != nil {
			return err
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			if idempotencyKey != "" && database.IsIdempotencyKeyViolation(err) {
				return errIdempotencyRace
			}
			return err
		}

		if len(req.SeatIDs) > 0 {
			if err := repos.Bookings.AddSeats(ctx, booking.ID, slot.ID, req.SeatIDs); err != nil {
				return err
			}
			if _, err := repos.Inventory.MarkSeatsBooked(ctx, slot.ID, req.SeatIDs); err != nil {
				return err
			}
		}

		// reusable slots count bookings per date instead
		if slot != nil && !slot.IsReusable() {
			if err := repos.Inventory.IncrementSlotBooked(ctx, slot.ID, booking.Quantity); err != nil {
				return err
			}
		}
		if err := repos.Listings.IncrementBooked(ctx, listing.ID, booking.Quantity); err != nil {
			return err
		}
		if slot != nil && len(req.SeatIDs) == 0 {
			if _, err := repos.Holds.DeleteForUserSlot(ctx, userID, slot.ID); err != nil {
				return err
			}
		}

		return repos.Notifications.Create(ctx, newNotification(
			userID, models.NotificationBookingConfirmed, "Booking Confirmed",
			fmt.Sprintf("Your booking %s for %s is confirmed.", booking.BookingNumber, listing.TitleName),
			booking.ID, now,
		))
	})
	if errors.Is(err, errIdempotencyRace) {
		existing, lookupErr := s.repos.Bookings.GetByIdempotencyKey(ctx, userID, idempotencyKey)
		if lookupErr != nil || existing == nil {
			return nil, false, internalError("failed to resolve idempotent booking", lookupErr)
		}
		detail, err := s.loadDetail(ctx, existing)
		return detail, true, err
	}
	if err != nil {
		return nil, false, internalError("failed to create booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"booking_number": booking.BookingNumber,
		"user_id":        userID,
		"listing_id":     booking.ListingID,
		"listing":        listingTitle,
		"quantity":       booking.Quantity,
		"total_amount":   booking.TotalAmount,
	}).Info("Booking confirmed")

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingConfirmed, booking, now)

	detail, err := s.loadDetail(ctx, booking)
	return detail, false, err
}

func validateBookingRequest(req models.CreateBookingRequest) error {
	hasSeats := len(req.SeatIDs) > 0
	if hasSeats && req.Quantity != 0 {
		return newInvalid("provide either seat_ids or quantity, not both")
	}
	if !hasSeats && req.Quantity < 1 {
		return newInvalid("either seat_ids or a quantity of at least 1 is required")
	}
	if hasSeats && req.TimeSlotID == nil {
		return newInvalid("time_slot_id is required when booking seats")
	}
	seen := make(map[uuid.UUID]struct{}, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		if _, dup := seen[id]; dup {
			return newInvalid("duplicate seat id %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// lockBookingTarget takes the row lock that serializes the booking: the
// slot when one is given, the listing otherwise
func lockBookingTarget(ctx context.Context, repos BookingRepos, listingID uuid.UUID, slotID *uuid.UUID) (*models.Listing, *models.TimeSlot, error) {
	if slotID == nil {
		listing, err := repos.Listings.LockActiveListing(ctx, listingID)
		if err != nil {
			return nil, nil, err
		}
		if listing == nil {
			return nil, nil, newNotFound("listing not found or inactive")
		}
		return listing, nil, nil
	}

	slot, err := repos.Inventory.LockActiveTimeSlot(ctx, *slotID)
	if err != nil {
		return nil, nil, err
	}
	listing, err := repos.Listings.GetActiveListing(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if listing == nil {
		return nil, nil, newNotFound("listing not found or inactive")
	}
	if slot == nil || slot.ListingID != listing.ID {
		return nil, nil, newNotFound("time slot not found or inactive")
	}
	return listing, slot, nil
}

// priceSeatBooking verifies every seat is live-locked by the caller and sets
// quantity and total. Nothing is written.
func (s *BookingService) priceSeatBooking(ctx context.Context, repos BookingRepos, booking *models.Booking, listing *models.Listing, slot *models.TimeSlot, seatIDs []uuid.UUID, now time.Time) error {
	rows, err := repos.Inventory.LockAvailabilityForSeats(ctx, slot.ID, seatIDs)
	if err != nil {
		return err
	}
	availability := indexAvailability(rows)
	for _, seatID := range seatIDs {
		if !models.ResolveSeatState(availability[seatID], now).IsLockedBy(booking.UserID) {
			return newConflict("one or more seats are not locked by you, or the lock has expired")
		}
	}

	qty := len(seatIDs)
	if slot.BookedCount+qty > slot.Capacity {
		return &CapacityError{Available: max(0, slot.Capacity-slot.BookedCount), Requested: qty}
	}

	booking.Quantity = qty
	if unit := unitPrice(slot, listing); unit > 0 {
		booking.TotalAmount = roundMoney(unit * float64(qty))
		return nil
	}

	seats, err := repos.Inventory.GetSeatsByIDs(ctx, seatIDs)
	if err != nil {
		return err
	}
	var total float64
	for _, seat := range seats {
		total += seat.Price
	}
	booking.TotalAmount = roundMoney(total)
	return nil
}

// checkReusableCapacity checks a quantity booking on a reusable slot against
// the bookings and other users' live holds for the event date. The caller's
// own holds are what the booking consumes.
func checkReusableCapacity(ctx context.Context, repos BookingRepos, booking *models.Booking, slot *models.TimeSlot, qty int, now time.Time) error {
	if booking.EventDate == nil {
		return newInvalid("event_date is required for this time slot")
	}
	date := utils.DateOnly(*booking.EventDate)
	if date.Before(utils.DateOnly(now)) {
		return newInvalid("event_date cannot be in the past")
	}
	booking.EventDate = &date

	booked, err := repos.Bookings.SumActiveQuantityForSlotDate(ctx, slot.ID, date)
	if err != nil {
		return err
	}
	held, err := repos.Holds.SumOthersActiveQuantityForDate(ctx, slot.ID, date, booking.UserID, now)
	if err != nil {
		return err
	}
	if available := max(0, slot.Capacity-booked-held); qty > available {
		return &CapacityError{Available: available, Requested: qty}
	}
	return nil
}

// priceCapacityBooking checks capacity for a quantity booking and sets
// quantity, total and the default event date
func priceCapacityBooking(booking *models.Booking, listing *models.Listing, slot *models.TimeSlot, qty int) error {
	switch {
	case slot != nil && slot.IsReusable():
		// checked per date by checkReusableCapacity
	case slot != nil:
		if slot.BookedCount+qty > slot.Capacity {
			return &CapacityError{Available: max(0, slot.Capacity-slot.BookedCount), Requested: qty}
		}
		if booking.EventDate == nil {
			booking.EventDate = slot.SlotDate
		}
	case listing.TotalCapacity != nil:
		if listing.BookedCount+qty > *listing.TotalCapacity {
			return &CapacityError{Available: max(0, *listing.TotalCapacity-listing.BookedCount), Requested: qty}
		}
	}

	booking.Quantity = qty
	booking.TotalAmount = roundMoney(unitPrice(slot, listing) * float64(qty))
	return nil
}

// unitPrice is the first positive of the slot override and the listing price
func unitPrice(slot *models.TimeSlot, listing *models.Listing) float64 {
	if slot != nil && slot.PriceOverride != nil && *slot.PriceOverride > 0 {
		return *slot.PriceOverride
	}
	if listing.Price != nil && *listing.Price > 0 {
		return *listing.Price
	}
	return 0
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func generateBookingNumber(ctx context.Context, repo *database.BookingRepository, prefix string) (string, error) {
	for attempt := 0; attempt < maxBookingNumberAttempts; attempt++ {
		number, err := utils.GenerateBookingNumber(prefix)
		if err != nil {
			return "", err
		}
		exists, err := repo.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique booking number after %d attempts", maxBookingNumberAttempts)
}

func newNotification(userID uuid.UUID, kind models.NotificationType, title, message string, ref uuid.UUID, at time.Time) *models.Notification {
	return &models.Notification{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        kind,
		ReferenceID: &ref,
		CreatedAt:   at,
	}
}

// publishBookingEvent runs after commit. Failures are logged only.
func publishBookingEvent(ctx context.Context, publisher events.Publisher, logger *logrus.Logger, eventType string, booking *models.Booking, at time.Time) {
	if err := publisher.Publish(ctx, events.NewBookingEvent(eventType, booking, at)); err != nil {
		logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"event":      eventType,
			"error":      err.Error(),
		}).Warn("Failed to publish booking event")
	}
}

// ============================================================================
// CANCEL
// ============================================================================

// CancelBooking cancels a confirmed booking of the caller and returns its
// seats and counts to inventory. Booking and booking_seats rows are kept.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.BookingCancelResponse, error) {
	now := s.clock.Now()

	var booking *models.Booking
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := s.repos.withTx(tx)

		current, err := repos.Bookings.GetByIDForUser(ctx, bookingID, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return newNotFound("booking not found")
		}
		var slot *models.TimeSlot
		if current.TimeSlotID != nil {
			if slot, err = repos.Inventory.LockTimeSlot(ctx, *current.TimeSlotID); err != nil {
				return err
			}
		}

		booking, err = repos.Bookings.LockByIDForUser(ctx, bookingID, userID)
		if err != nil {
			return err
		}
		if booking == nil {
			return newNotFound("booking not found")
		}
		if booking.Status != models.BookingStatusConfirmed {
			return newConflict("only confirmed bookings can be cancelled (current status: '%s')", booking.Status)
		}

		if err := repos.Bookings.MarkCancelled(ctx, booking.ID, now); err != nil {
			return err
		}

		// Restaurant bookings never incremented the counters.
		if !booking.IsRestaurant() {
			if booking.TimeSlotID != nil {
				if slot == nil || !slot.IsReusable() {
					if err := repos.Inventory.DecrementSlotBooked(ctx, *booking.TimeSlotID, booking.Quantity); err != nil {
						return err
					}
				}
				if _, err := repos.Inventory.ResetSeatsForBooking(ctx, *booking.TimeSlotID, booking.ID); err != nil {
					return err
				}
			}
			if err := repos.Listings.DecrementBooked(ctx, booking.ListingID, booking.Quantity); err != nil {
				return err
			}
		}

		booking.Status = models.BookingStatusCancelled
		booking.CancelledAt = &now

		return repos.Notifications.Create(ctx, newNotification(
			userID, models.NotificationCancelled, "Booking Cancelled",
			fmt.Sprintf("Your booking %s has been cancelled.", booking.BookingNumber),
			booking.ID, now,
		))
	})
	if err != nil {
		return nil, internalError("failed to cancel booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"booking_number": booking.BookingNumber,
		"user_id":        userID,
		"quantity":       booking.Quantity,
	}).Info("Booking cancelled")

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingCancelled, booking, now)

	return &models.BookingCancelResponse{
		ID:            booking.ID,
		BookingNumber: booking.BookingNumber,
		Status:        booking.Status,
		CancelledAt:   booking.CancelledAt,
	}, nil
}

// ============================================================================
// READ
// ============================================================================

// GetBooking returns one of the caller's bookings with its details
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.BookingDetail, error) {
	booking, err := s.repos.Bookings.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, internalError("failed to get booking", err)
	}
	if booking == nil {
		return nil, newNotFound("booking not found")
	}
	return s.loadDetail(ctx, booking)
}

// GetBookingByNumber looks a booking up by its public number
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, userID uuid.UUID) (*models.BookingDetail, error) {
	booking, err := s.repos.Bookings.GetByNumberForUser(ctx, number, userID)
	if err != nil {
		return nil, internalError("failed to get booking", err)
	}
	if booking == nil {
		return nil, newNotFound("booking not found")
	}
	return s.loadDetail(ctx, booking)
}

// ListBookings returns a page of the caller's bookings, newest first
func (s *BookingService) ListBookings(ctx context.Context, userID uuid.UUID, filter models.BookingListFilter) (*models.PaginatedBookings, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, newInvalid("unknown booking status '%s'", *filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultBookingsPageSize
	}
	if filter.Limit > maxBookingsPageSize {
		filter.Limit = maxBookingsPageSize
	}

	bookings, total, err := s.repos.Bookings.ListForUser(ctx, userID, filter)
	if err != nil {
		return nil, internalError("failed to list bookings", err)
	}

	data := make([]models.BookingDetail, 0, len(bookings))
	for i := range bookings {
		detail, err := s.loadDetail(ctx, &bookings[i])
		if err != nil {
			return nil, err
		}
		data = append(data, *detail)
	}

	return &models.PaginatedBookings{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

// loadDetail attaches listing, venue, time slot and seat summaries
func (s *BookingService) loadDetail(ctx context.Context, booking *models.Booking) (*models.BookingDetail, error) {
	detail := &models.BookingDetail{Booking: *booking, Seats: []models.BookingSeatSummary{}}

	listing, venue, err := s.repos.Bookings.GetListingSummary(ctx, booking.ListingID)
	if err != nil {
		return nil, internalError("failed to load booking details", err)
	}
	detail.Listing, detail.Venue = listing, venue

	if booking.TimeSlotID != nil {
		if detail.TimeSlot, err = s.repos.Bookings.GetTimeSlotSummary(ctx, *booking.TimeSlotID); err != nil {
			return nil, internalError("failed to load booking details", err)
		}
		if detail.Seats, err = s.repos.Bookings.GetSeatSummaries(ctx, booking.ID); err != nil {
			return nil, internalError("failed to load booking details", err)
		}
	}
	return detail, nil
}
