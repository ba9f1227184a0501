// Package verification issues and redeems single-use email verification
// tokens. Only the SHA-256 digest of a token is persisted; the raw value is
// handed to a Delivery and never logged.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"onboarding/internal/customer/metrics"
	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultResendLimit  = 3
	DefaultResendWindow = time.Hour

	rawTokenBytes = 32
)

// TokenStore persists token digests.
type TokenStore interface {
	Create(ctx context.Context, t *models.VerificationToken) error
	TakeByHash(ctx context.Context, hash string) (*models.VerificationToken, error)
	CountCreatedSince(ctx context.Context, customerID id.CustomerID, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// CustomerLookup resolves the customer a token is issued for.
type CustomerLookup interface {
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
}

// Message carries a raw token to the customer out of band.
type Message struct {
	CustomerID id.CustomerID
	Email      string
	RawToken   string
	ExpiresAt  time.Time
}

// Delivery sends verification messages. Implementations must not log RawToken.
type Delivery interface {
	Deliver(ctx context.Context, msg Message) error
}

type Manager struct {
	tokens    TokenStore
	customers CustomerLookup
	delivery  Delivery
	logger    *slog.Logger
	metrics   *metrics.Metrics

	ttl          time.Duration
	resendLimit  int
	resendWindow time.Duration
	now          func() time.Time
	random       io.Reader
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mtr }
}

// WithTTL sets how long an issued token stays redeemable.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithResendLimit caps resends to limit tokens per trailing window.
func WithResendLimit(limit int, window time.Duration) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.resendLimit = limit
		}
		if window > 0 {
			m.resendWindow = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRandom overrides the entropy source for raw tokens.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.random = r }
}

func New(tokens TokenStore, customers CustomerLookup, delivery Delivery, opts ...Option) *Manager {
	m := &Manager{
		tokens:       tokens,
		customers:    customers,
		delivery:     delivery,
		ttl:          DefaultTTL,
		resendLimit:  DefaultResendLimit,
		resendWindow: DefaultResendWindow,
		now:          time.Now,
		random:       rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Issue creates a fresh token for the customer and delivers it.
func (m *Manager) Issue(ctx context.Context, customerID id.CustomerID) error {
	customer, err := m.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ErrCustomerNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer")
	}
	return m.issue(ctx, customer.ID, customer.Email)
}

// HandleCustomerRegistered issues the first token for a new account.
// Events may arrive more than once: a redelivery finds the token issued by
// the first delivery, or an already verified customer, and does nothing.
func (m *Manager) HandleCustomerRegistered(ctx context.Context, event models.CustomerRegistered) error {
	if event.CustomerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "event has no customer id")
	}
	customer, err := m.customers.FindByID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ErrCustomerNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer")
	}
	if customer.IsVerified() {
		m.logger.InfoContext(ctx, "registration event for verified customer ignored",
			"customer_id", customer.ID.String(),
		)
		return nil
	}

	issued, err := m.tokens.CountCreatedSince(ctx, customer.ID, event.RegisteredAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count issued tokens")
	}
	if issued > 0 {
		m.logger.InfoContext(ctx, "duplicate registration event ignored",
			"customer_id", customer.ID.String(),
		)
		return nil
	}
	return m.issue(ctx, customer.ID, customer.Email)
}

// Resend issues another token unless the customer has hit the resend limit.
// Unknown and already verified addresses return nil so callers cannot discover
// which emails are registered.
func (m *Manager) Resend(ctx context.Context, email string) error {
	customer, err := m.customers.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer")
	}
	if customer.IsVerified() {
		return nil
	}

	// Count-then-issue is not atomic; concurrent resends may exceed the limit by a few.
	since := m.now().Add(-m.resendWindow)
	recent, err := m.tokens.CountCreatedSince(ctx, customer.ID, since)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent tokens")
	}
	if recent >= m.resendLimit {
		if m.metrics != nil {
			m.metrics.IncrementResendRateLimited()
		}
		m.logger.WarnContext(ctx, "verification resend rate limited",
			"customer_id", customer.ID.String(),
			"recent", recent,
		)
		return models.ErrRateLimitExceeded
	}
	return m.issue(ctx, customer.ID, customer.Email)
}

// Redeem consumes the token matching rawToken and returns its customer.
// The record is removed even when it turns out to be expired.
func (m *Manager) Redeem(ctx context.Context, rawToken string) (id.CustomerID, error) {
	if rawToken == "" {
		return id.CustomerID{}, models.ErrTokenNotFound
	}
	record, err := m.tokens.TakeByHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.CustomerID{}, models.ErrTokenNotFound
		}
		return id.CustomerID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem token")
	}
	if record.IsExpired(m.now()) {
		m.logger.InfoContext(ctx, "expired verification token presented",
			"customer_id", record.CustomerID.String(),
			"token_id", record.ID.String(),
		)
		return id.CustomerID{}, models.ErrTokenExpired
	}
	return record.CustomerID, nil
}

// Sweep removes expired token records.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.tokens.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	if n > 0 {
		if m.metrics != nil {
			m.metrics.AddTokensSwept(n)
		}
		m.logger.InfoContext(ctx, "expired verification tokens swept", "count", n)
	}
	return n, nil
}

func (m *Manager) issue(ctx context.Context, customerID id.CustomerID, email string) error {
	raw, err := m.newRawToken()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate token")
	}
	now := m.now()
	record := &models.VerificationToken{
		ID:         id.NewTokenID(),
		CustomerID: customerID,
		TokenHash:  HashToken(raw),
		ExpiresAt:  now.Add(m.ttl),
		CreatedAt:  now,
	}
	if err := m.tokens.Create(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist token")
	}

	msg := Message{
		CustomerID: customerID,
		Email:      email,
		RawToken:   raw,
		ExpiresAt:  record.ExpiresAt,
	}
	if err := m.delivery.Deliver(ctx, msg); err != nil {
		m.logger.ErrorContext(ctx, "verification delivery failed",
			"customer_id", customerID.String(),
			"token_id", record.ID.String(),
			"error", err,
		)
		// An undelivered token must not count against the resend limit or
		// mark the registration event as handled.
		if _, takeErr := m.tokens.TakeByHash(ctx, record.TokenHash); takeErr != nil && !errors.Is(takeErr, sentinel.ErrNotFound) {
			m.logger.ErrorContext(ctx, "failed to discard undelivered token",
				"token_id", record.ID.String(),
				"error", takeErr,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deliver verification email")
	}
	if m.metrics != nil {
		m.metrics.IncrementTokensIssued()
	}
	m.logger.InfoContext(ctx, "verification token issued",
		"customer_id", customerID.String(),
		"token_id", record.ID.String(),
		"expires_at", record.ExpiresAt,
	)
	return nil
}

func (m *Manager) newRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the lowercase hex SHA-256 digest of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
