package models

import (
	"regexp"
	"strings"
	"time"

	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

// Status is the customer lifecycle position. Ordering is meaningful:
// a customer only ever moves forward.
type Status string

const (
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	StatusVerified            Status = "VERIFIED"
	StatusProfileComplete     Status = "PROFILE_COMPLETE"
)

var statusRank = map[Status]int{
	StatusPendingVerification: 0,
	StatusVerified:            1,
	StatusProfileComplete:     2,
}

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// AtLeast reports whether s is at or beyond other in the lifecycle.
func (s Status) AtLeast(other Status) bool {
	return statusRank[s] >= statusRank[other]
}

func (s Status) String() string { return string(s) }

// Customer is the account aggregate.
//
// Invariants:
//   - Email is lowercase and unique across customers
//   - VerifiedAt is set iff Status is VERIFIED or later
//   - Status never regresses
type Customer struct {
	ID           id.CustomerID `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Status       Status        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	VerifiedAt   *time.Time    `json:"verified_at,omitempty"`
}

// NewCustomer creates a customer awaiting email verification.
func NewCustomer(customerID id.CustomerID, email, passwordHash string, now time.Time) (*Customer, error) {
	if customerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "customer ID required")
	}
	if email == "" || email != NormalizeEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "customer email must be normalized")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash required")
	}
	return &Customer{
		ID:           customerID,
		Email:        email,
		PasswordHash: passwordHash,
		Status:       StatusPendingVerification,
		CreatedAt:    now,
	}, nil
}

func (c *Customer) IsVerified() bool {
	return c.Status.AtLeast(StatusVerified)
}

// CanVerify reports whether verification would change the customer.
// Verification of an already verified customer is a no-op, not an error.
func (c *Customer) CanVerify() bool {
	return c.Status == StatusPendingVerification
}

// ApplyVerification marks the email verified. Call only when CanVerify is true.
func (c *Customer) ApplyVerification(now time.Time) {
	c.Status = StatusVerified
	c.VerifiedAt = &now
}

// Verify applies verification if needed and reports whether anything changed.
func (c *Customer) Verify(now time.Time) bool {
	if !c.CanVerify() {
		return false
	}
	c.ApplyVerification(now)
	return true
}

// CanCompleteProfile checks that the customer may submit regulated data.
func (c *Customer) CanCompleteProfile() error {
	if !c.IsVerified() {
		return ErrNotVerified
	}
	return nil
}

// ApplyProfileCompletion advances a verified customer to PROFILE_COMPLETE.
// Reports false when the customer was already complete.
func (c *Customer) ApplyProfileCompletion() bool {
	if c.Status == StatusProfileComplete {
		return false
	}
	c.Status = StatusProfileComplete
	return true
}

// Mirrors common RFC 5322 practice: local@domain.tld with a 2+ letter TLD.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const maxEmailLength = 254

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized email.
func ValidateEmail(email string) error {
	if email == "" {
		return dErrors.Wrap(ErrInvalidEmail, dErrors.CodeValidation, "email is required")
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
