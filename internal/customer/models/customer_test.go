package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

type CustomerSuite struct {
	suite.Suite
	now time.Time
}

func TestCustomerSuite(t *testing.T) {
	suite.Run(t, new(CustomerSuite))
}

func (s *CustomerSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *CustomerSuite) newCustomer() *Customer {
	c, err := NewCustomer(id.NewCustomerID(), "user@example.com", "hash", s.now)
	s.Require().NoError(err)
	return c
}

func (s *CustomerSuite) TestNewCustomer() {
	s.Run("starts pending without verifiedAt", func() {
		c := s.newCustomer()
		s.Equal(StatusPendingVerification, c.Status)
		s.Nil(c.VerifiedAt)
		s.Equal(s.now, c.CreatedAt)
	})

	s.Run("rejects unnormalized email", func() {
		_, err := NewCustomer(id.NewCustomerID(), "User@Example.com", "hash", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects nil id", func() {
		_, err := NewCustomer(id.CustomerID{}, "user@example.com", "hash", s.now)
		s.Error(err)
	})
}

func (s *CustomerSuite) TestVerify() {
	c := s.newCustomer()
	later := s.now.Add(time.Hour)

	s.True(c.Verify(later))
	s.Equal(StatusVerified, c.Status)
	s.Require().NotNil(c.VerifiedAt)
	s.Equal(later, *c.VerifiedAt)

	s.False(c.Verify(later.Add(time.Hour)), "second verification is a no-op")
	s.Equal(later, *c.VerifiedAt)
}

func (s *CustomerSuite) TestProfileCompletion() {
	c := s.newCustomer()

	s.Require().ErrorIs(c.CanCompleteProfile(), ErrNotVerified)

	c.Verify(s.now)
	s.Require().NoError(c.CanCompleteProfile())
	s.True(c.ApplyProfileCompletion())
	s.Equal(StatusProfileComplete, c.Status)
	s.NotNil(c.VerifiedAt, "verifiedAt survives later transitions")

	s.NoError(c.CanCompleteProfile(), "complete customers may resubmit")
	s.False(c.ApplyProfileCompletion())
	s.False(c.Verify(s.now), "status never regresses")
	s.Equal(StatusProfileComplete, c.Status)
}

func TestStatusOrdering(t *testing.T) {
	assert.True(t, StatusProfileComplete.AtLeast(StatusVerified))
	assert.True(t, StatusVerified.AtLeast(StatusVerified))
	assert.False(t, StatusPendingVerification.AtLeast(StatusVerified))
	assert.False(t, Status("DELETED").IsValid())
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@EXAMPLE.COM "))

	valid := []string{"user@example.com", "first.last+tag@sub.example.co", "a_b%c@x-y.io"}
	for _, e := range valid {
		assert.NoError(t, ValidateEmail(e), e)
	}

	invalid := []string{"", "plain", "user@", "@example.com", "user@example", "user@example.c", "us er@example.com"}
	for _, e := range invalid {
		err := ValidateEmail(e)
		require.Error(t, err, e)
		assert.True(t, errors.Is(err, ErrInvalidEmail), e)
	}
}

func TestPasswordPolicy(t *testing.T) {
	policy := DefaultPasswordPolicy()

	cases := []struct {
		name     string
		password string
		reason   string
	}{
		{"empty", "", "password is required"},
		{"too short", "Ab1!xyz", "at least 8 characters"},
		{"no uppercase", "abcdef1!", "uppercase"},
		{"no lowercase", "ABCDEF1!", "lowercase"},
		{"no digit", "Abcdefg!", "digit"},
		{"no symbol", "Abcdefg1", "special character"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Check(tc.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrWeakPassword)
			assert.Contains(t, err.Error(), tc.reason)
			assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}

	t.Run("all classes at minimum length", func(t *testing.T) {
		assert.NoError(t, policy.Check("Abcdef1!"))
	})

	t.Run("relaxed policy", func(t *testing.T) {
		relaxed := PasswordPolicy{MinLength: 4}
		assert.NoError(t, relaxed.Check("abcd"))
	})
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	tok := &VerificationToken{ExpiresAt: now}
	assert.True(t, tok.IsExpired(now))
	assert.False(t, tok.IsExpired(now.Add(-time.Nanosecond)))
}
