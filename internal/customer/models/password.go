package models

import (
	"fmt"
	"strings"
	"unicode"
)

const passwordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

// PasswordPolicy is the strength rule applied at registration.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy requires 8 characters drawn from all four classes.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// Check returns an error wrapping ErrWeakPassword naming the first failed rule.
func (p PasswordPolicy) Check(password string) error {
	if password == "" {
		return weakPassword("password is required")
	}
	if len([]rune(password)) < p.MinLength {
		return weakPassword(fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return weakPassword("password must contain an uppercase letter")
	case p.RequireLower && !lower:
		return weakPassword("password must contain a lowercase letter")
	case p.RequireDigit && !digit:
		return weakPassword("password must contain a digit")
	case p.RequireSymbol && !symbol:
		return weakPassword("password must contain a special character")
	}
	return nil
}
