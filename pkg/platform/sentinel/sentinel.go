// Package sentinel holds the storage facts that stores return, wrapped with
// context, and that services translate into customer-facing domain errors.
//
//   - ErrNotFound: no customer, profile, token or audit row for the key
//   - ErrAlreadyUsed: a unique value (email, token digest) is taken
//   - ErrConflict: a concurrent writer won the race for the same row
//   - ErrInvalidState: the row exists but cannot take the requested change
//
// Input validation never uses these; see pkg/domain-errors.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
