package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"onboarding/internal/customer/models"
	"onboarding/internal/customer/verification"
	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

// Register creates a customer in PENDING_VERIFICATION and publishes
// CustomerRegistered, which triggers the first verification email.
func (s *Service) Register(ctx context.Context, req *models.RegistrationRequest) (result *models.RegistrationResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := models.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := s.policy.Check(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.customers.FindByEmail(ctx, req.Email); err == nil {
		return nil, models.ErrEmailAlreadyExists
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	now := requestcontext.Now(ctx)
	customer, err := models.NewCustomer(id.NewCustomerID(), req.Email, hash, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("customer.id", customer.ID.String()))

	err = s.transactor.RunInTx(ctx, customer.Email, func(ctx context.Context) error {
		if err := s.customers.Create(ctx, customer); err != nil {
			// The unique index decides races the lookup above missed.
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return models.ErrEmailAlreadyExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create customer")
		}
		event := models.CustomerRegistered{
			CustomerID:   customer.ID,
			Email:        customer.Email,
			RegisteredAt: now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish registration")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistered()
		s.metrics.ObserveOperation("register", start)
	}
	s.logger.InfoContext(ctx, "customer registered",
		"customer_id", customer.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.RegistrationResult{
		CustomerID: customer.ID,
		Email:      customer.Email,
		Status:     customer.Status,
		CreatedAt:  customer.CreatedAt,
	}, nil
}

// VerifyEmail redeems rawToken and marks its customer verified. Redeeming a
// token for an already verified customer succeeds without changing state.
// Redemption and the status change share one transaction, so a failed update
// leaves the token in place. Expired tokens are still consumed.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (result *models.VerifyEmailResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "VerifyEmail")
	defer func() { endSpan(span, err) }()

	var (
		customer  *models.Customer
		changed   bool
		redeemErr error
	)
	err = s.transactor.RunInTx(ctx, verification.HashToken(rawToken), func(ctx context.Context) error {
		customerID, err := s.tokens.Redeem(ctx, rawToken)
		if errors.Is(err, models.ErrTokenNotFound) || errors.Is(err, models.ErrTokenExpired) {
			// commit the delete of an expired token
			redeemErr = err
			return nil
		}
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("customer.id", customerID.String()))

		c, err := s.loadCustomer(ctx, customerID, true)
		if err != nil {
			return err
		}
		if changed = c.Verify(requestcontext.Now(ctx)); changed {
			if err := s.customers.Update(ctx, c); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify customer")
			}
		}
		customer = c
		return nil
	})
	if err == nil {
		err = redeemErr
	}
	if err != nil {
		s.recordVerification(verificationOutcome(err))
		return nil, err
	}

	if changed {
		s.recordVerification("verified")
		s.logger.InfoContext(ctx, "customer email verified", "customer_id", customer.ID.String())
	} else {
		s.recordVerification("already_verified")
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation("verify_email", start)
	}
	return &models.VerifyEmailResult{
		CustomerID: customer.ID,
		Email:      customer.Email,
		Status:     customer.Status,
		VerifiedAt: customer.VerifiedAt,
	}, nil
}

// ResendVerification returns the same acknowledgment whether or not the
// address belongs to an unverified customer. Only the rate limit is reported.
func (s *Service) ResendVerification(ctx context.Context, email string) (result *models.ResendResult, err error) {
	ctx, span := s.startSpan(ctx, "ResendVerification")
	defer func() { endSpan(span, err) }()

	email = models.NormalizeEmail(email)
	if models.ValidateEmail(email) == nil {
		if err := s.tokens.Resend(ctx, email); err != nil {
			return nil, err
		}
	}
	return &models.ResendResult{Message: models.ResendAcknowledgment}, nil
}

func (s *Service) recordVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(outcome)
	}
}

func verificationOutcome(err error) string {
	switch {
	case errors.Is(err, models.ErrTokenExpired):
		return "expired"
	case errors.Is(err, models.ErrTokenNotFound):
		return "not_found"
	default:
		return "error"
	}
}
