package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// LISTING & CATALOG (read-only here, except the aggregate counters)
// ============================================================================

// ListingStatus represents the lifecycle of a listing
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusDraft    ListingStatus = "draft"
	ListingStatusInactive ListingStatus = "inactive"
	ListingStatusExpired  ListingStatus = "expired"
)

// TitleCategory is the catalog category of a listing's title
type TitleCategory string

const (
	CategoryMovies      TitleCategory = "movies"
	CategoryEvents      TitleCategory = "events"
	CategoryRestaurants TitleCategory = "restaurants"
)

// Listing is a title offered at a venue, with aggregate capacity counters
type Listing struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	TitleID       uuid.UUID     `json:"title_id" db:"title_id"`
	VenueID       *uuid.UUID    `json:"venue_id,omitempty" db:"venue_id"`
	City          *string       `json:"city,omitempty" db:"city"`
	Price         *float64      `json:"price,omitempty" db:"price"`
	Currency      string        `json:"currency" db:"currency"`
	StartDatetime *time.Time    `json:"start_datetime,omitempty" db:"start_datetime"`
	EndDatetime   *time.Time    `json:"end_datetime,omitempty" db:"end_datetime"`
	TotalCapacity *int          `json:"total_capacity,omitempty" db:"total_capacity"`
	BookedCount   int           `json:"booked_count" db:"booked_count"`
	Status        ListingStatus `json:"status" db:"status"`
	// Joined from titles
	TitleName string        `json:"title" db:"title_name"`
	Category  TitleCategory `json:"category" db:"category"`
}

// ListingSummary is embedded in booking responses
type ListingSummary struct {
	Title    string  `json:"title" db:"title"`
	ImageURL *string `json:"image_url,omitempty" db:"image_url"`
	Category *string `json:"category,omitempty" db:"category"`
}

// VenueSummary is embedded in booking responses
type VenueSummary struct {
	Name string  `json:"name" db:"name"`
	City *string `json:"city,omitempty" db:"city"`
}

// Hall is a physical room with a fixed seat layout
type Hall struct {
	ID         uuid.UUID `json:"id" db:"id"`
	VenueID    uuid.UUID `json:"venue_id" db:"venue_id"`
	Name       string    `json:"name" db:"name"`
	ScreenType *string   `json:"screen_type,omitempty" db:"screen_type"`
	Capacity   int       `json:"capacity" db:"capacity"`
	IsActive   bool      `json:"is_active" db:"is_active"`
}

// HallSummary is the hall block of a seat map
type HallSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ScreenType *string   `json:"screen_type,omitempty"`
}

// Seat belongs to one hall
type Seat struct {
	ID           uuid.UUID `json:"id" db:"id"`
	HallID       uuid.UUID `json:"hall_id" db:"hall_id"`
	RowLabel     string    `json:"row_label" db:"row_label"`
	SeatNumber   int       `json:"seat_number" db:"seat_number"`
	Category     string    `json:"category" db:"category"` // platinum, gold, silver...
	Price        float64   `json:"price" db:"price"`
	IsAisle      bool      `json:"is_aisle" db:"is_aisle"`
	IsAccessible bool      `json:"is_accessible" db:"is_accessible"`
}

// ============================================================================
// TIME SLOTS
// ============================================================================

// TimeSlot is a bookable window for a listing. A nil SlotDate marks a
// reusable slot (restaurants) that serves every calendar date.
type TimeSlot struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ListingID       uuid.UUID  `json:"listing_id" db:"listing_id"`
	HallID          *uuid.UUID `json:"hall_id,omitempty" db:"hall_id"`
	SlotDate        *time.Time `json:"slot_date,omitempty" db:"slot_date"`
	StartTime       string     `json:"start_time" db:"start_time"` // HH:MM:SS, UTC
	EndTime         *string    `json:"end_time,omitempty" db:"end_time"`
	Capacity        int        `json:"capacity" db:"capacity"`
	BookedCount     int        `json:"booked_count" db:"booked_count"`
	PriceOverride   *float64   `json:"price_override,omitempty" db:"price_override"`
	SlotType        *string    `json:"slot_type,omitempty" db:"slot_type"` // lunch, dinner
	DiscountPercent *float64   `json:"discount_percent,omitempty" db:"discount_percent"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	// Joined from halls when listing slots
	HallName *string `json:"hall_name,omitempty" db:"hall_name"`
}

// IsReusable reports whether the slot is a date-less template
func (s *TimeSlot) IsReusable() bool {
	return s.SlotDate == nil
}

// HasHall reports whether the slot is seat-based
func (s *TimeSlot) HasHall() bool {
	return s.HallID != nil
}

// TimeSlotSummary is embedded in booking responses
type TimeSlotSummary struct {
	SlotDate  *time.Time `json:"slot_date,omitempty" db:"slot_date"`
	StartTime string     `json:"start_time" db:"start_time"`
	EndTime   *string    `json:"end_time,omitempty" db:"end_time"`
	HallID    *uuid.UUID `json:"hall_id,omitempty" db:"hall_id"`
	HallName  *string    `json:"hall_name,omitempty" db:"hall_name"`
}

// ============================================================================
// SEAT AVAILABILITY
// ============================================================================

// SeatAvailabilityStatus is the stored status of a seat_availability row
type SeatAvailabilityStatus string

const (
	SeatStatusAvailable SeatAvailabilityStatus = "available"
	SeatStatusLocked    SeatAvailabilityStatus = "locked"
	SeatStatusBooked    SeatAvailabilityStatus = "booked"
)

// SeatAvailability is one (time_slot, seat) row. Absence of a row means the
// seat is available; use ResolveSeatState rather than inspecting rows.
type SeatAvailability struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	TimeSlotID  uuid.UUID              `json:"time_slot_id" db:"time_slot_id"`
	SeatID      uuid.UUID              `json:"seat_id" db:"seat_id"`
	Status      SeatAvailabilityStatus `json:"status" db:"status"`
	LockedBy    *uuid.UUID             `json:"locked_by,omitempty" db:"locked_by"`
	LockedUntil *time.Time             `json:"locked_until,omitempty" db:"locked_until"`
}

// SeatStateKind tags a SeatState
type SeatStateKind int

const (
	SeatAvailable SeatStateKind = iota
	SeatLocked
	SeatBooked
)

// SeatState is the effective state of a seat for a time slot at an instant.
// Owner and Until are set only for SeatLocked.
type SeatState struct {
	Kind  SeatStateKind
	Owner uuid.UUID
	Until time.Time
}

// ResolveSeatState derives the effective state from an optional availability
// row. A lock whose expiry is before now resolves to available.
func ResolveSeatState(row *SeatAvailability, now time.Time) SeatState {
	if row == nil {
		return SeatState{Kind: SeatAvailable}
	}
	switch row.Status {
	case SeatStatusBooked:
		return SeatState{Kind: SeatBooked}
	case SeatStatusLocked:
		if row.LockedBy == nil || row.LockedUntil == nil || row.LockedUntil.Before(now) {
			return SeatState{Kind: SeatAvailable}
		}
		return SeatState{Kind: SeatLocked, Owner: *row.LockedBy, Until: *row.LockedUntil}
	default:
		return SeatState{Kind: SeatAvailable}
	}
}

// IsLockedBy reports whether the seat is held by a live lock of userID
func (s SeatState) IsLockedBy(userID uuid.UUID) bool {
	return s.Kind == SeatLocked && s.Owner == userID
}

// Status maps the state to its wire representation
func (s SeatState) Status() SeatAvailabilityStatus {
	switch s.Kind {
	case SeatLocked:
		return SeatStatusLocked
	case SeatBooked:
		return SeatStatusBooked
	default:
		return SeatStatusAvailable
	}
}

// ============================================================================
// SEAT MAP & LOCK DTOs
// ============================================================================

// SeatMapSeat is one seat on the seat map
type SeatMapSeat struct {
	ID           uuid.UUID              `json:"id"`
	Number       int                    `json:"number"`
	Status       SeatAvailabilityStatus `json:"status"`
	IsAisle      bool                   `json:"is_aisle"`
	IsAccessible bool                   `json:"is_accessible"`
}

// SeatMapRow groups seats sharing a row label
type SeatMapRow struct {
	Label    string        `json:"label"`
	Category string        `json:"category"`
	Price    float64       `json:"price"`
	Seats    []SeatMapSeat `json:"seats"`
}

// SeatMapResponse is returned by the seat map endpoint
type SeatMapResponse struct {
	TimeSlotID uuid.UUID    `json:"time_slot_id"`
	Hall       HallSummary  `json:"hall"`
	Rows       []SeatMapRow `json:"rows"`
}

// LockSeatsRequest is the body of a seat lock call
type LockSeatsRequest struct {
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1"`
}

// SeatLockResponse is returned after a successful lock
type SeatLockResponse struct {
	LockedSeats []uuid.UUID `json:"locked_seats"`
	LockedUntil time.Time   `json:"locked_until"`
	TTLSeconds  int         `json:"ttl_seconds"`
}

// SeatLockReleaseResponse lists the seats released for the caller
type SeatLockReleaseResponse struct {
	ReleasedSeats []uuid.UUID `json:"released_seats"`
}

// SeatAvailabilityStats summarizes seat_availability rows for admins
type SeatAvailabilityStats struct {
	TotalRows        int `json:"total_rows" db:"total_rows"`
	Available        int `json:"available" db:"available"`
	Locked           int `json:"locked" db:"locked"`
	Booked           int `json:"booked" db:"booked"`
	StalePastSlot    int `json:"stale_past_slot_rows" db:"stale_past_slot_rows"`
	RedundantCleanup int `json:"redundant_rows_to_cleanup"`
}

// SeatAvailabilityCleanupResult reports what a cleanup pass deleted
type SeatAvailabilityCleanupResult struct {
	DeletedStale     int64 `json:"deleted_stale_slot_rows"`
	DeletedRedundant int64 `json:"deleted_redundant_available_rows"`
	TotalDeleted     int64 `json:"total_deleted"`
}
