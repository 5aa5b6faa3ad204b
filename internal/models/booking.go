package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the status of a booking.
// completed and pending are valid but not produced by any flow yet.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusPending   BookingStatus = "pending"
)

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusPending:
		return true
	}
	return false
}

// RestaurantBookingType distinguishes paid-cover from free reservations
type RestaurantBookingType string

const (
	RestaurantBookingCover   RestaurantBookingType = "cover"
	RestaurantBookingReserve RestaurantBookingType = "reserve"
)

// Booking is the durable reservation record
type Booking struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	UserID          uuid.UUID              `json:"user_id" db:"user_id"`
	ListingID       uuid.UUID              `json:"listing_id" db:"listing_id"`
	TimeSlotID      *uuid.UUID             `json:"time_slot_id,omitempty" db:"time_slot_id"`
	BookingNumber   string                 `json:"booking_number" db:"booking_number"`
	Quantity        int                    `json:"quantity" db:"quantity"`
	TotalAmount     float64                `json:"total_amount" db:"total_amount"`
	Status          BookingStatus          `json:"status" db:"status"`
	BookingDate     time.Time              `json:"booking_date" db:"booking_date"`
	EventDate       *time.Time             `json:"event_date,omitempty" db:"event_date"`
	Notes           *string                `json:"notes,omitempty" db:"notes"`
	PartySize       *int                   `json:"party_size,omitempty" db:"party_size"`
	BookingType     *RestaurantBookingType `json:"booking_type,omitempty" db:"booking_type"`
	CoverChargePaid *float64               `json:"cover_charge_paid,omitempty" db:"cover_charge_paid"`
	IdempotencyKey  *string                `json:"-" db:"idempotency_key"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

// IsRestaurant reports whether the booking came from the restaurant flow,
// which never touches the slot or listing counters.
func (b *Booking) IsRestaurant() bool {
	return b.BookingType != nil
}

// BookingSeat links a booking to one seat. Kept after cancellation.
type BookingSeat struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	SeatID     uuid.UUID `json:"seat_id" db:"seat_id"`
	TimeSlotID uuid.UUID `json:"time_slot_id" db:"time_slot_id"`
}

// BookingHold is a temporary claim on slot capacity. SlotDate is set only
// for holds against reusable slots.
type BookingHold struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TimeSlotID uuid.UUID  `json:"time_slot_id" db:"time_slot_id"`
	SlotDate   *time.Time `json:"slot_date,omitempty" db:"slot_date"`
	Quantity   int        `json:"quantity" db:"quantity"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// NotificationType classifies notification rows
type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationCancelled        NotificationType = "cancelled"
)

// Notification is a write-only row for the delivery system
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      uuid.UUID        `json:"user_id" db:"user_id"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	Type        NotificationType `json:"type" db:"type"`
	ReferenceID *uuid.UUID       `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CreateBookingRequest confirms a seat-based (SeatIDs) or capacity-based
// (Quantity) booking.
type CreateBookingRequest struct {
	ListingID  uuid.UUID   `json:"listing_id" binding:"required"`
	TimeSlotID *uuid.UUID  `json:"time_slot_id,omitempty"`
	SeatIDs    []uuid.UUID `json:"seat_ids,omitempty"`
	Quantity   int         `json:"quantity,omitempty" binding:"omitempty,min=1"`
	EventDate  *string     `json:"event_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Notes      *string     `json:"notes,omitempty" binding:"omitempty,max=1000"`
}

// BookingSeatSummary is one seat line in a booking response
type BookingSeatSummary struct {
	SeatID   uuid.UUID `json:"seat_id" db:"seat_id"`
	Row      string    `json:"row" db:"row_label"`
	Number   int       `json:"number" db:"seat_number"`
	Category string    `json:"category" db:"category"`
	Price    float64   `json:"price" db:"price"`
}

// BookingDetail is a booking with its nested summaries
type BookingDetail struct {
	Booking
	Listing  *ListingSummary      `json:"listing,omitempty"`
	Venue    *VenueSummary        `json:"venue,omitempty"`
	TimeSlot *TimeSlotSummary     `json:"time_slot,omitempty"`
	Seats    []BookingSeatSummary `json:"seats"`
}

// BookingCancelResponse is returned after cancellation
type BookingCancelResponse struct {
	ID            uuid.UUID     `json:"id"`
	BookingNumber string        `json:"booking_number"`
	Status        BookingStatus `json:"status"`
	CancelledAt   *time.Time    `json:"cancelled_at"`
}

// BookingListFilter narrows a user's booking list
type BookingListFilter struct {
	Status *BookingStatus
	Page   int
	Limit  int
}

// PaginatedBookings is the list response
type PaginatedBookings struct {
	Data       []BookingDetail `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// ============================================================================
// CAPACITY HOLD DTOs
// ============================================================================

// CreateHoldRequest places a capacity hold. EventDate is required for
// reusable slots.
type CreateHoldRequest struct {
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	EventDate *string `json:"event_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
}

// HoldResponse is returned after a hold is created
type HoldResponse struct {
	HoldID            uuid.UUID `json:"hold_id"`
	TimeSlotID        uuid.UUID `json:"time_slot_id"`
	Quantity          int       `json:"quantity"`
	ExpiresAt         time.Time `json:"expires_at"`
	TTLSeconds        int       `json:"ttl_seconds"`
	RemainingCapacity int       `json:"remaining_capacity"`
}

// HoldReleaseResponse reports the freed quantity
type HoldReleaseResponse struct {
	ReleasedQuantity int       `json:"released_quantity"`
	TimeSlotID       uuid.UUID `json:"time_slot_id"`
}
