package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptwn/booking-backend/internal/models"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testBooking() *models.Booking {
	slotID := uuid.New()
	return &models.Booking{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		ListingID:     uuid.New(),
		TimeSlotID:    &slotID,
		BookingNumber: "UPT-7K2M9QXA",
		Quantity:      2,
		TotalAmount:   500,
		Status:        models.BookingStatusConfirmed,
	}
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "bookings"}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	booking := testBooking()
	event := NewBookingEvent(BookingConfirmed, booking, at)

	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "bookings", ch.exchange)
	assert.Equal(t, BookingConfirmed, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, booking.ID.String()+":"+BookingConfirmed, ch.msg.MessageId)

	var decoded BookingEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, booking.BookingNumber, decoded.BookingNumber)
	assert.Equal(t, booking.TimeSlotID, decoded.TimeSlotID)
	assert.Equal(t, at, decoded.OccurredAt)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &AMQPPublisher{ch: ch, exchange: "bookings"}

	err := p.Publish(context.Background(), NewBookingEvent(BookingCancelled, testBooking(), time.Now()))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish booking.cancelled")
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "bookings"}

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), BookingEvent{}))
	assert.NoError(t, p.Close())
}
