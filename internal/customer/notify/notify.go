// Package notify connects customer lifecycle events to the event transport.
package notify

import (
	"context"

	"onboarding/internal/customer/models"
	"onboarding/pkg/platform/events"
)

// Publisher converts CustomerRegistered into an envelope and hands it to a
// sink: the in-process bus, or the outbox when running on Postgres.
type Publisher struct {
	sink events.Sink
}

func NewPublisher(sink events.Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) Publish(ctx context.Context, event models.CustomerRegistered) error {
	env, err := events.NewEnvelope(models.EventCustomerRegistered, event.CustomerID.String(), event, event.RegisteredAt)
	if err != nil {
		return err
	}
	return p.sink.Publish(ctx, env)
}

// RegistrationHandler is the subscriber side of CustomerRegistered.
type RegistrationHandler interface {
	HandleCustomerRegistered(ctx context.Context, event models.CustomerRegistered) error
}

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(eventType string, h events.Handler)
}

// Subscribe routes CustomerRegistered envelopes to h.
func Subscribe(bus Subscriber, h RegistrationHandler) {
	bus.Subscribe(models.EventCustomerRegistered, func(ctx context.Context, env events.Envelope) error {
		var event models.CustomerRegistered
		if err := env.Decode(&event); err != nil {
			return err
		}
		return h.HandleCustomerRegistered(ctx, event)
	})
}
