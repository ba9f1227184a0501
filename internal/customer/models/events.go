package models

import (
	"time"

	id "onboarding/pkg/domain"
)

// EventCustomerRegistered is the event type published after registration.
const EventCustomerRegistered = "customer.registered"

// CustomerRegistered is published once a customer account is persisted.
type CustomerRegistered struct {
	CustomerID   id.CustomerID `json:"customer_id"`
	Email        string        `json:"email"`
	RegisteredAt time.Time     `json:"registered_at"`
}
