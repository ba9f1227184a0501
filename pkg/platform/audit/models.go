// Package audit records field-level changes to regulated customer data.
package audit

import (
	"context"
	"time"

	id "onboarding/pkg/domain"
)

// Audited profile fields.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldDateOfBirth = "date_of_birth"
	FieldSSN         = "ssn"
	FieldAddress     = "address"
	FieldPhone       = "phone"
)

// ProfileChange is one field mutation on a customer profile. OldValue is
// empty when the field is set for the first time. Sensitive values must be
// masked before they reach this type.
type ProfileChange struct {
	ID         id.AuditRecordID
	CustomerID id.CustomerID
	FieldName  string
	OldValue   string
	NewValue   string
	// ChangedBy identifies the actor, normally the authenticated customer.
	ChangedBy string
	ChangedAt time.Time
	RequestID string
}

// Store persists profile changes. Implementations join the caller's
// transaction when one is present on the context.
type Store interface {
	Append(ctx context.Context, change ProfileChange) error
	ListByCustomer(ctx context.Context, customerID id.CustomerID) ([]ProfileChange, error)
}
