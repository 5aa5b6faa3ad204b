package models

import (
	"time"

	"github.com/google/uuid"
)

// RestaurantSlotWindow is one reusable slot with live availability for a date
type RestaurantSlotWindow struct {
	ID              uuid.UUID `json:"id"`
	StartTime       string    `json:"start_time"`
	EndTime         *string   `json:"end_time,omitempty"`
	SlotType        *string   `json:"slot_type,omitempty"`
	DiscountPercent *float64  `json:"discount_percent,omitempty"`
	Available       int       `json:"available"`
	Capacity        int       `json:"capacity"`
	IsFull          bool      `json:"is_full"`
}

// RestaurantSlotGroup groups windows by slot type (lunch, dinner, general)
type RestaurantSlotGroup struct {
	SlotType string                 `json:"slot_type"`
	Windows  []RestaurantSlotWindow `json:"windows"`
}

// CreateRestaurantBookingRequest books a reusable restaurant slot for a date
type CreateRestaurantBookingRequest struct {
	ListingID   uuid.UUID             `json:"listing_id" binding:"required"`
	TimeSlotID  uuid.UUID             `json:"time_slot_id" binding:"required"`
	EventDate   string                `json:"event_date" binding:"required,datetime=2006-01-02"`
	PartySize   int                   `json:"party_size"`
	BookingType RestaurantBookingType `json:"booking_type" binding:"required,booking_type"`
	Notes       *string               `json:"notes,omitempty" binding:"omitempty,max=1000"`
}

// RestaurantBookingResponse is returned after a restaurant booking
type RestaurantBookingResponse struct {
	Type            string                `json:"type"`
	ID              uuid.UUID             `json:"id"`
	ListingID       uuid.UUID             `json:"listing_id"`
	TimeSlotID      uuid.UUID             `json:"time_slot_id"`
	SlotType        *string               `json:"slot_type,omitempty"`
	SlotDate        time.Time             `json:"slot_date"`
	StartTime       string                `json:"start_time"`
	EndTime         *string               `json:"end_time,omitempty"`
	PartySize       int                   `json:"party_size"`
	BookingType     RestaurantBookingType `json:"booking_type"`
	DiscountPercent float64               `json:"discount_percent"`
	CoverChargePaid float64               `json:"cover_charge_paid"`
	Estimate        float64               `json:"estimate"`
	Status          BookingStatus         `json:"status"`
	BookingNumber   string                `json:"booking_number"`
	CreatedAt       time.Time             `json:"created_at"`
}
