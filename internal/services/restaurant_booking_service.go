package services

import (
	"context"
	"fmt"
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

const generalSlotType = "general"

// RestaurantBookingService books reusable restaurant slots per calendar date.
// Capacity is counted from bookings and live holds on that date, so slot and
// listing counters are never touched.
type RestaurantBookingService struct {
	db        *sqlx.DB
	repos     BookingRepos
	publisher events.Publisher
	config    config.BookingConfig
	clock     utils.Clock
	logger    *logrus.Logger
}

// NewRestaurantBookingService creates a new RestaurantBookingService
func NewRestaurantBookingService(
	db *sqlx.DB,
	repos BookingRepos,
	publisher events.Publisher,
	cfg config.BookingConfig,
	clock utils.Clock,
	logger *logrus.Logger,
) *RestaurantBookingService {
	return &RestaurantBookingService{
		db:        db,
		repos:     repos,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		logger:    logger,
	}
}

// ListRestaurantSlots returns the listing's reusable slots with availability
// on date, grouped by slot type. For today, slots that already started are
// left out.
func (s *RestaurantBookingService) ListRestaurantSlots(ctx context.Context, listingID uuid.UUID, date time.Time) ([]models.RestaurantSlotGroup, error) {
	listing, err := s.repos.Listings.GetActiveListing(ctx, listingID)
	if err != nil {
		return nil, internalError("failed to load listing", err)
	}
	if listing == nil {
		return nil, newNotFound("listing not found or inactive")
	}

	now := s.clock.Now()
	date = utils.DateOnly(date)
	today := utils.DateOnly(now)
	if date.Before(today) {
		return nil, newInvalid("date cannot be in the past")
	}

	var startsAfter *string
	if date.Equal(today) {
		tod := utils.TimeOfDay(now)
		startsAfter = &tod
	}

	slots, err := s.repos.Inventory.ListReusableTimeSlots(ctx, listingID, startsAfter)
	if err != nil {
		return nil, internalError("failed to list restaurant slots", err)
	}

	groups := []models.RestaurantSlotGroup{}
	groupIndex := make(map[string]int)
	for _, slot := range slots {
		taken, err := takenOnDate(ctx, s.repos, slot.ID, date, now)
		if err != nil {
			return nil, internalError("failed to count slot bookings", err)
		}
		available := max(0, slot.Capacity-taken)

		slotType := generalSlotType
		if slot.SlotType != nil && *slot.SlotType != "" {
			slotType = *slot.SlotType
		}
		idx, ok := groupIndex[slotType]
		if !ok {
			idx = len(groups)
			groupIndex[slotType] = idx
			groups = append(groups, models.RestaurantSlotGroup{SlotType: slotType, Windows: []models.RestaurantSlotWindow{}})
		}
		groups[idx].Windows = append(groups[idx].Windows, models.RestaurantSlotWindow{
			ID:              slot.ID,
			StartTime:       slot.StartTime,
			EndTime:         slot.EndTime,
			SlotType:        slot.SlotType,
			DiscountPercent: slot.DiscountPercent,
			Available:       available,
			Capacity:        slot.Capacity,
			IsFull:          available == 0,
		})
	}
	return groups, nil
}

// CreateRestaurantBooking books one table on a reusable slot for a date
func (s *RestaurantBookingService) CreateRestaurantBooking(ctx context.Context, userID uuid.UUID, req models.CreateRestaurantBookingRequest) (*models.RestaurantBookingResponse, error) {
	if req.BookingType != models.RestaurantBookingCover && req.BookingType != models.RestaurantBookingReserve {
		return nil, newInvalid("booking_type must be 'cover' or 'reserve'")
	}
	if req.PartySize < 1 {
		return nil, newInvalid("party_size must be at least 1")
	}

	date, err := utils.ParseDate(req.EventDate)
	if err != nil {
		return nil, newInvalid("event_date must be YYYY-MM-DD")
	}
	now := s.clock.Now()
	if date.Before(utils.DateOnly(now)) {
		return nil, newInvalid("event_date cannot be in the past")
	}

	bookingType := req.BookingType
	partySize := req.PartySize
	booking := &models.Booking{
		ID:          uuid.New(),
		UserID:      userID,
		ListingID:   req.ListingID,
		TimeSlotID:  &req.TimeSlotID,
		Quantity:    1,
		Status:      models.BookingStatusConfirmed,
		BookingDate: now,
		EventDate:   &date,
		Notes:       req.Notes,
		PartySize:   &partySize,
		BookingType: &bookingType,
		CreatedAt:   now,
	}

	var (
		slot     *models.TimeSlot
		discount float64
		estimate float64
		cover    float64
	)
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := s.repos.withTx(tx)

		var err error
		slot, err = repos.Inventory.LockActiveListingSlot(ctx, req.TimeSlotID, req.ListingID)
		if err != nil {
			return err
		}
		listing, err := repos.Listings.GetActiveListing(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return newNotFound("listing not found or inactive")
		}
		if slot == nil || !slot.IsReusable() {
			return newNotFound("time slot not found for this listing")
		}

		taken, err := takenOnDate(ctx, repos, slot.ID, date, now)
		if err != nil {
			return err
		}
		if taken >= slot.Capacity {
			return newConflict("fully booked for the selected date")
		}

		switch bookingType {
		case models.RestaurantBookingCover:
			cover = s.config.CoverCharge
			if slot.DiscountPercent != nil {
				discount = *slot.DiscountPercent
			}
		case models.RestaurantBookingReserve:
			discount = s.config.ReserveDiscountPercent
		}
		if listing.Price != nil {
			estimate = roundMoney(*listing.Price * float64(partySize) * (1 - discount/100))
		}
		booking.TotalAmount = cover
		booking.CoverChargePaid = &cover

		if booking.BookingNumber, err = generateBookingNumber(ctx, repos.Bookings, s.config.NumberPrefix); err != nil {
			return err
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return err
		}

		return repos.Notifications.Create(ctx, newNotification(
			userID, models.NotificationBookingConfirmed, "Table Reserved",
			fmt.Sprintf("Your table for %d at %s on %s is confirmed (%s).",
				partySize, listing.TitleName, date.Format("2006-01-02"), booking.BookingNumber),
			booking.ID, now,
		))
	})
	if err != nil {
		return nil, internalError("failed to create restaurant booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"booking_number": booking.BookingNumber,
		"user_id":        userID,
		"time_slot_id":   slot.ID,
		"event_date":     req.EventDate,
		"booking_type":   bookingType,
		"party_size":     partySize,
	}).Info("Restaurant booking confirmed")

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingConfirmed, booking, now)

	return &models.RestaurantBookingResponse{
		Type:            "booking",
		ID:              booking.ID,
		ListingID:       booking.ListingID,
		TimeSlotID:      slot.ID,
		SlotType:        slot.SlotType,
		SlotDate:        date,
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		PartySize:       partySize,
		BookingType:     bookingType,
		DiscountPercent: discount,
		CoverChargePaid: cover,
		Estimate:        estimate,
		Status:          booking.Status,
		BookingNumber:   booking.BookingNumber,
		CreatedAt:       booking.CreatedAt,
	}, nil
}

// takenOnDate is the bookings plus the live holds of a reusable slot on date
func takenOnDate(ctx context.Context, repos BookingRepos, slotID uuid.UUID, date, now time.Time) (int, error) {
	booked, err := repos.Bookings.SumActiveQuantityForSlotDate(ctx, slotID, date)
	if err != nil {
		return 0, err
	}
	held, err := repos.Holds.SumActiveQuantityForDate(ctx, slotID, date, now)
	if err != nil {
		return 0, err
	}
	return booked + held, nil
}
