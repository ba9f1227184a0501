// Package events carries domain events between modules, either in process
// through a Bus or durably through the transactional outbox and Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a JSON-encoded event with routing metadata.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewEnvelope encodes payload and stamps a fresh event id.
func NewEnvelope(eventType, aggregateID string, payload any, occurredAt time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     raw,
		OccurredAt:  occurredAt,
	}, nil
}

// DecodeEnvelope parses an envelope as written by an outbox relay.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handler reacts to one event. Handlers may see the same event more than
// once when it arrives through Kafka.
type Handler func(ctx context.Context, env Envelope) error

// Sink accepts events for delivery.
type Sink interface {
	Publish(ctx context.Context, env Envelope) error
}
