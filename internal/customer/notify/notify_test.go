package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/events"
)

type recordingHandler struct {
	got []models.CustomerRegistered
}

func (h *recordingHandler) HandleCustomerRegistered(_ context.Context, event models.CustomerRegistered) error {
	h.got = append(h.got, event)
	return nil
}

func TestPublishRoundTripsThroughBus(t *testing.T) {
	bus := events.NewBus()
	handler := &recordingHandler{}
	Subscribe(bus, handler)

	event := models.CustomerRegistered{
		CustomerID:   id.NewCustomerID(),
		Email:        "new@example.com",
		RegisteredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewPublisher(bus).Publish(context.Background(), event))

	require.Len(t, handler.got, 1)
	assert.Equal(t, event, handler.got[0])
}

type captureSink struct {
	env events.Envelope
}

func (s *captureSink) Publish(_ context.Context, env events.Envelope) error {
	s.env = env
	return nil
}

func TestPublishEnvelope(t *testing.T) {
	sink := &captureSink{}
	customerID := id.NewCustomerID()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	err := NewPublisher(sink).Publish(context.Background(), models.CustomerRegistered{
		CustomerID:   customerID,
		Email:        "new@example.com",
		RegisteredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, models.EventCustomerRegistered, sink.env.Type)
	assert.Equal(t, customerID.String(), sink.env.AggregateID)
	assert.Equal(t, at, sink.env.OccurredAt)
	assert.JSONEq(t,
		`{"customer_id":"`+customerID.String()+`","email":"new@example.com","registered_at":"2026-05-01T12:00:00Z"}`,
		string(sink.env.Payload))
}
