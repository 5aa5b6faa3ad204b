// Package events publishes booking lifecycle events to RabbitMQ. Publishing
// happens after the database commit and is best effort: callers log failures
// and never roll back because of them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/uptwn/booking-backend/internal/models"
)

// Routing keys
const (
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
)

// BookingEvent is the message body for booking events
type BookingEvent struct {
	Type          string               `json:"type"`
	BookingID     uuid.UUID            `json:"booking_id"`
	BookingNumber string               `json:"booking_number"`
	UserID        uuid.UUID            `json:"user_id"`
	ListingID     uuid.UUID            `json:"listing_id"`
	TimeSlotID    *uuid.UUID           `json:"time_slot_id,omitempty"`
	Quantity      int                  `json:"quantity"`
	TotalAmount   float64              `json:"total_amount"`
	Status        models.BookingStatus `json:"status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewBookingEvent builds an event of the given type from a booking
func NewBookingEvent(eventType string, b *models.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		UserID:        b.UserID,
		ListingID:     b.ListingID,
		TimeSlotID:    b.TimeSlotID,
		Quantity:      b.Quantity,
		TotalAmount:   b.TotalAmount,
		Status:        b.Status,
		OccurredAt:    at.UTC(),
	}
}

// Publisher sends booking events
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when RABBITMQ_URL is not set.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

// amqpChannel is the subset of *amqp.Channel used for publishing
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange, keyed by event type
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	mu       sync.Mutex // amqp channels are not safe for concurrent publishes
}

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends the event with its type as routing key
func (p *AMQPPublisher) Publish(ctx context.Context, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.BookingID.String() + ":" + event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	chErr := p.ch.Close()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return err
		}
	}
	return chErr
}
