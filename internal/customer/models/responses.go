package models

import (
	"time"

	id "onboarding/pkg/domain"
)

// ResendAcknowledgment is returned for every resend request that is not rate limited.
const ResendAcknowledgment = "Verification email sent if account exists"

type RegistrationResult struct {
	CustomerID id.CustomerID `json:"customer_id"`
	Email      string        `json:"email"`
	Status     Status        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

type VerifyEmailResult struct {
	CustomerID id.CustomerID `json:"customer_id"`
	Email      string        `json:"email"`
	Status     Status        `json:"status"`
	VerifiedAt *time.Time    `json:"verified_at,omitempty"`
}

type ResendResult struct {
	Message string `json:"message"`
}

// ProfileResult is the redacted view of a profile. It never carries the SSN.
type ProfileResult struct {
	CustomerID  id.CustomerID `json:"customer_id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	DateOfBirth string        `json:"date_of_birth"`
	SSNLastFour string        `json:"ssn_last_four"`
	Address     Address       `json:"address"`
	Phone       string        `json:"phone,omitempty"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

// NewProfileResult redacts p for callers.
func NewProfileResult(p *Profile, status Status) *ProfileResult {
	return &ProfileResult{
		CustomerID:  p.CustomerID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format(DateLayout),
		SSNLastFour: p.SSNLastFour,
		Address:     p.Address,
		Phone:       p.Phone,
		Status:      status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
