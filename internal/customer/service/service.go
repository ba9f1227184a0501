// Package service implements customer onboarding: registration, email
// verification and collection of the regulated profile.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboarding/internal/customer/metrics"
	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/platform/tx"
)

type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	FindByIDForUpdate(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
}

type ProfileStore interface {
	Find(ctx context.Context, customerID id.CustomerID) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) error
}

// TokenManager redeems and re-issues verification tokens.
type TokenManager interface {
	Redeem(ctx context.Context, rawToken string) (id.CustomerID, error)
	Resend(ctx context.Context, email string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// Publisher announces new registrations.
type Publisher interface {
	Publish(ctx context.Context, event models.CustomerRegistered) error
}

// AuditRecorder persists profile changes. A failed Record aborts the write.
type AuditRecorder interface {
	Record(ctx context.Context, change audit.ProfileChange) error
}

type FieldCipher interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(blob []byte) (string, error)
}

// Service coordinates the customer aggregate, its profile and the token
// manager. Writes to one customer are serialized through the Transactor.
type Service struct {
	customers  CustomerStore
	profiles   ProfileStore
	tokens     TokenManager
	hasher     PasswordHasher
	cipher     FieldCipher
	publisher  Publisher
	auditor    AuditRecorder
	transactor tx.Transactor
	policy     models.PasswordPolicy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTransactor sets the per-customer transaction runner. Defaults to
// in-process sharded locks.
func WithTransactor(t tx.Transactor) Option {
	return func(s *Service) {
		s.transactor = t
	}
}

func WithPasswordPolicy(p models.PasswordPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func New(
	customers CustomerStore,
	profiles ProfileStore,
	tokens TokenManager,
	hasher PasswordHasher,
	cipher FieldCipher,
	publisher Publisher,
	auditor AuditRecorder,
	opts ...Option,
) *Service {
	s := &Service{
		customers: customers,
		profiles:  profiles,
		tokens:    tokens,
		hasher:    hasher,
		cipher:    cipher,
		publisher: publisher,
		auditor:   auditor,
		policy:    models.DefaultPasswordPolicy(),
		tracer:    otel.Tracer("onboarding/internal/customer/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transactor == nil {
		s.transactor = tx.NewShardedTransactor()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "customer."+name)
}

// endSpan marks the span failed for server-side errors only; client errors
// are expected outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) loadCustomer(ctx context.Context, customerID id.CustomerID, forUpdate bool) (*models.Customer, error) {
	find := s.customers.FindByID
	if forUpdate {
		find = s.customers.FindByIDForUpdate
	}
	c, err := find(ctx, customerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrCustomerNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer")
	}
	return c, nil
}

func (s *Service) findProfile(ctx context.Context, customerID id.CustomerID) (*models.Profile, error) {
	p, err := s.profiles.Find(ctx, customerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, nil
}
