package models

import dErrors "onboarding/pkg/domain-errors"

// Domain failures surfaced by the customer service. Compare with errors.Is;
// some call sites wrap these with a more specific message.
var (
	ErrInvalidEmail       = dErrors.New(dErrors.CodeValidation, "invalid email address")
	ErrWeakPassword       = dErrors.New(dErrors.CodeValidation, "password does not meet strength requirements")
	ErrEmailAlreadyExists = dErrors.New(dErrors.CodeConflict, "email already registered")
	ErrTokenNotFound      = dErrors.New(dErrors.CodeNotFound, "verification token not found")
	ErrTokenExpired       = dErrors.New(dErrors.CodeExpired, "verification token expired")
	ErrRateLimitExceeded  = dErrors.New(dErrors.CodeRateLimited, "too many verification emails requested")
	ErrCustomerNotFound   = dErrors.New(dErrors.CodeNotFound, "customer not found")
	ErrProfileNotFound    = dErrors.New(dErrors.CodeNotFound, "profile not found")
	ErrNotVerified        = dErrors.New(dErrors.CodeForbidden, "email not verified")
)

// weakPassword annotates ErrWeakPassword with the rule that failed.
func weakPassword(reason string) error {
	return dErrors.Wrap(ErrWeakPassword, dErrors.CodeValidation, reason)
}
