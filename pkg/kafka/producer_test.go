package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func bookingEnvelope(id string) Envelope {
	return Envelope{Type: "sessions.booking.created", AggregateID: id, AggregateType: "booking", Source: "sessions-cli"}
}

func TestNewEvent_Fields(t *testing.T) {
	type bookingData struct {
		BookingID int64  `json:"booking_id"`
		Status    string `json:"status"`
	}

	data := bookingData{BookingID: 12, Status: "CONFIRMED"}
	event, err := NewEvent(bookingEnvelope("12"), data)
	require.NoError(t, err)

	assert.Len(t, event.EventID, 36)
	assert.Equal(t, "sessions.booking.created", event.EventType)
	assert.Equal(t, "12", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var decoded bookingData
	require.NoError(t, event.DecodeData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		data any
	}{
		{"missing type", Envelope{AggregateID: "1", Source: "sessions-cli"}, nil},
		{"missing aggregate", Envelope{Type: "x", Source: "sessions-cli"}, nil},
		{"missing source", Envelope{Type: "x", AggregateID: "1"}, nil},
		{"unencodable data", bookingEnvelope("1"), make(chan int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.env, tt.data)
			assert.Error(t, err)
		})
	}
}

func TestEvent_Builders(t *testing.T) {
	event, err := NewEvent(bookingEnvelope("1"), nil)
	require.NoError(t, err)

	event.WithCorrelationID("corr-1").WithMetadata("state", "already_booked")
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, "already_booked", event.Metadata["state"])
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, testLogger())

	event, err := NewEvent(bookingEnvelope("42"), map[string]int{"session": 7})
	require.NoError(t, err)
	event.WithCorrelationID("corr-7").WithMetadata("attempt_id", "att-1")

	require.NoError(t, p.Publish(context.Background(), "sessions.bookings", event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "sessions.bookings", msg.Topic)
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "sessions.booking.created", header(msg, "event_type"))
	assert.Equal(t, "corr-7", header(msg, "correlation_id"))
	assert.Equal(t, "att-1", header(msg, "meta.attempt_id"))
	assert.Equal(t, event.Timestamp, msg.Time)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, testLogger())

	event, err := NewEvent(bookingEnvelope("42"), nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "sessions.bookings", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions.bookings")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, testLogger())
	assert.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, nil, testLogger()).Close())
	assert.True(t, w.closed)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"k:9092"})
	assert.Equal(t, []string{"k:9092"}, cfg.Brokers)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
}
