package models

import (
	"time"

	id "onboarding/pkg/domain"
)

// VerificationToken is the persisted half of an email verification token.
// Only the digest of the raw value is ever stored.
type VerificationToken struct {
	ID         id.TokenID
	CustomerID id.CustomerID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
