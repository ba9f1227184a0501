package domain

import (
	"github.com/google/uuid"

	dErrors "onboarding/pkg/domain-errors"
)

// Typed identifiers keep customer, token, and audit ids from being mixed up
// at compile time. All are UUIDs underneath.
type (
	CustomerID    uuid.UUID
	TokenID       uuid.UUID
	AuditRecordID uuid.UUID
)

func NewCustomerID() CustomerID       { return CustomerID(uuid.New()) }
func NewTokenID() TokenID             { return TokenID(uuid.New()) }
func NewAuditRecordID() AuditRecordID { return AuditRecordID(uuid.New()) }

func (id CustomerID) String() string    { return uuid.UUID(id).String() }
func (id TokenID) String() string       { return uuid.UUID(id).String() }
func (id AuditRecordID) String() string { return uuid.UUID(id).String() }

func (id CustomerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AuditRecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseCustomerID parses a customer id at a trust boundary.
func ParseCustomerID(s string) (CustomerID, error) {
	u, err := parseUUID(s, "customer")
	return CustomerID(u), err
}

// ParseTokenID parses a verification token id.
func ParseTokenID(s string) (TokenID, error) {
	u, err := parseUUID(s, "token")
	return TokenID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID cannot be nil")
	}
	return u, nil
}

func (id CustomerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CustomerID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = CustomerID(u)
	return nil
}
