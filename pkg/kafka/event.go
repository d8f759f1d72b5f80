package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// metadataHeaderPrefix namespaces metadata copied into message headers.
const metadataHeaderPrefix = "meta."

// Envelope names what an event is about.
type Envelope struct {
	Type          string
	AggregateID   string
	AggregateType string
	Source        string
}

func (e Envelope) validate() error {
	switch {
	case e.Type == "":
		return errors.New("event type is required")
	case e.AggregateID == "":
		return errors.New("aggregate id is required")
	case e.Source == "":
		return errors.New("event source is required")
	}
	return nil
}

// Event is the JSON body of every published message.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent stamps env with a fresh id and time and encodes data as the payload.
func NewEvent(env Envelope, data any) (*Event, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", env.Type, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     env.Type,
		AggregateID:   env.AggregateID,
		AggregateType: env.AggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        env.Source,
		Data:          payload,
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata adds a key-value pair to the event metadata.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// DecodeData decodes the event payload into target.
func (e *Event) DecodeData(target any) error {
	return json.Unmarshal(e.Data, target)
}

// message builds the kafka message for topic. The key is the aggregate id,
// so one booking's events stay ordered on one partition; metadata is
// repeated in headers for consumers that route without decoding the body.
func (e *Event) message(topic string) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	for k, v := range e.Metadata {
		headers = append(headers, kafka.Header{Key: metadataHeaderPrefix + k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.AggregateID),
		Value:   body,
		Headers: headers,
		Time:    e.Timestamp,
	}, nil
}
