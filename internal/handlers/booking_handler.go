package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/pkg/validator"
)

// IdempotencyKeyHeader carries the client's retry key for POST /bookings
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// Booker is the booking engine used by BookingHandler
type Booker interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req models.CreateBookingRequest, idempotencyKey string) (*models.BookingDetail, bool, error)
	CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.BookingCancelResponse, error)
	GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.BookingDetail, error)
	GetBookingByNumber(ctx context.Context, number string, userID uuid.UUID) (*models.BookingDetail, error)
	ListBookings(ctx context.Context, userID uuid.UUID, filter models.BookingListFilter) (*models.PaginatedBookings, error)
}

// RestaurantBooker is the restaurant booking engine used by BookingHandler
type RestaurantBooker interface {
	ListRestaurantSlots(ctx context.Context, listingID uuid.UUID, date time.Time) ([]models.RestaurantSlotGroup, error)
	CreateRestaurantBooking(ctx context.Context, userID uuid.UUID, req models.CreateRestaurantBookingRequest) (*models.RestaurantBookingResponse, error)
}

// BookingHandler handles booking confirmation, lookup and cancellation
type BookingHandler struct {
	bookings    Booker
	restaurants RestaurantBooker
	logger      *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings Booker, restaurants RestaurantBooker, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		restaurants: restaurants,
		logger:      logger,
	}
}

// CreateBooking handles POST /api/v1/bookings. A replay of a known
// Idempotency-Key answers 200 with the original booking.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	idempotencyKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Idempotency-Key is too long", "INVALID_IDEMPOTENCY_KEY")
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	detail, replayed, err := h.bookings.CreateBooking(c.Request.Context(), userID, req, idempotencyKey)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if replayed {
		c.JSON(http.StatusOK, detail)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter := models.BookingListFilter{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 10),
	}
	if status := c.Query("status"); status != "" {
		s := models.BookingStatus(status)
		filter.Status = &s
	}

	result, err := h.bookings.ListBookings(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.bookings.GetBooking(c.Request.Context(), bookingID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetBookingByNumber handles GET /api/v1/bookings/number/:number
func (h *BookingHandler) GetBookingByNumber(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	number, err := validator.ValidateBookingNumber(c.Param("number"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error(), "INVALID_BOOKING_NUMBER")
		return
	}

	detail, err := h.bookings.GetBookingByNumber(c.Request.Context(), number, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CancelBooking handles PATCH /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.bookings.CancelBooking(c.Request.Context(), bookingID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListRestaurantSlots handles GET /api/v1/listings/:id/restaurant-slots
func (h *BookingHandler) ListRestaurantSlots(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if c.Query("date") == "" {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "date is required", "INVALID_DATE")
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		return
	}

	groups, err := h.restaurants.ListRestaurantSlots(c.Request.Context(), listingID, *date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":       date.Format("2006-01-02"),
		"slot_types": groups,
	})
}

// CreateRestaurantBooking handles POST /api/v1/restaurant-bookings
func (h *BookingHandler) CreateRestaurantBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateRestaurantBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.restaurants.CreateRestaurantBooking(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// queryInt reads an integer query parameter. Malformed values fall back to
// def; the service clamps the range.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
