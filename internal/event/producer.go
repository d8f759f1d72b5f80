// Package event publishes booking attempt outcomes to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/pkg/kafka"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// Kafka topic constants for booking events.
const (
	TopicBookingCreated            = "sessions.booking.created"
	TopicBookingFailed             = "sessions.booking.failed"
	TopicBookingDuplicate          = "sessions.booking.duplicate"
	TopicPaymentInitiated          = "sessions.payment.initiated"
	TopicPaymentConfirmed          = "sessions.payment.confirmed"
	TopicPaymentFailed             = "sessions.payment.failed"
	TopicPaymentGatewayUnavailable = "sessions.payment.gateway_unavailable"
)

// AggregateTypeBooking is the aggregate type of every booking event.
const AggregateTypeBooking = "booking"

// SourceSessionsCLI identifies events published by this client.
const SourceSessionsCLI = "sessions-cli"

var topics = map[booking.State]string{
	booking.StateBookingCreated:     TopicBookingCreated,
	booking.StateBookingFailed:      TopicBookingFailed,
	booking.StateAlreadyBooked:      TopicBookingDuplicate,
	booking.StatePaymentInitiated:   TopicPaymentInitiated,
	booking.StatePaymentConfirmed:   TopicPaymentConfirmed,
	booking.StatePaymentFailed:      TopicPaymentFailed,
	booking.StateGatewayUnavailable: TopicPaymentGatewayUnavailable,
}

// TopicFor returns the topic for state, or "" when the state is not published.
func TopicFor(state booking.State) string {
	return topics[state]
}

// BookingEventData is the payload of every booking event.
type BookingEventData struct {
	AttemptID string         `json:"attempt_id"`
	BookingID int64          `json:"booking_id,omitempty"`
	SessionID int64          `json:"session_id"`
	UserID    int64          `json:"user_id,omitempty"`
	State     booking.State  `json:"state"`
	Status    string         `json:"booking_status,omitempty"`
	Message   string         `json:"message"`
	OrderID   string         `json:"order_id,omitempty"`
	Amount    int64          `json:"amount,omitempty"`
	Currency  string         `json:"currency,omitempty"`
	Steps     []booking.Step `json:"steps"`
}

// publisher is the part of *kafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes booking attempts. It satisfies booking.EventPublisher.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(k *kafka.Producer, logger *slog.Logger) *Producer {
	return newProducer(k, logger)
}

func newProducer(k publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: k, logger: logger}
}

// PublishAttempt publishes a on the topic for its state.
func (p *Producer) PublishAttempt(ctx context.Context, a *booking.Attempt) error {
	topic := TopicFor(a.State)
	if topic == "" {
		return nil
	}

	data := BookingEventData{
		AttemptID: a.ID,
		BookingID: a.BookingID(),
		SessionID: a.SessionID,
		State:     a.State,
		Message:   a.Message,
		Steps:     a.Steps,
	}
	if a.Booking != nil {
		data.UserID = a.Booking.User
		data.Status = string(a.Booking.Status)
	}
	if a.Checkout != nil {
		data.OrderID = a.Checkout.OrderID
		data.Amount = a.Checkout.Amount
		data.Currency = a.Checkout.Currency
	}

	aggregateID := a.ID
	if id := a.BookingID(); id != 0 {
		aggregateID = strconv.FormatInt(id, 10)
	}

	evt, err := kafka.NewEvent(kafka.Envelope{
		Type:          topic,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypeBooking,
		Source:        SourceSessionsCLI,
	}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	correlationID := logger.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = a.ID
	}
	evt.WithCorrelationID(correlationID).WithMetadata("attempt_id", a.ID)

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
