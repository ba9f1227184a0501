package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/requestcontext"
)

// CompleteProfile stores the regulated profile of a verified customer and
// advances it to PROFILE_COMPLETE. Resubmission replaces the profile. Every
// changed field is audited before the profile is written.
func (s *Service) CompleteProfile(ctx context.Context, customerID id.CustomerID, req *models.ProfileRequest) (result *models.ProfileResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "CompleteProfile")
	span.SetAttributes(attribute.String("customer.id", customerID.String()))
	defer func() { endSpan(span, err) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	now := requestcontext.Now(ctx)
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	var completed bool
	err = s.transactor.RunInTx(ctx, customerID.String(), func(ctx context.Context) error {
		customer, err := s.loadCustomer(ctx, customerID, true)
		if err != nil {
			return err
		}
		if err := customer.CanCompleteProfile(); err != nil {
			return err
		}
		existing, err := s.findProfile(ctx, customerID)
		if err != nil {
			return err
		}

		encrypted, err := s.cipher.Encrypt(req.SSN)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt ssn")
		}
		fields := req.Fields()
		lastFour := models.LastFour(req.SSN)

		changes := s.profileChanges(existing, fields, req.SSN)
		var profile *models.Profile
		if existing == nil {
			profile = models.NewProfile(customerID, fields, encrypted, lastFour, now)
		} else {
			profile = existing
			profile.Replace(fields, encrypted, lastFour, now)
		}

		if err := s.recordChanges(ctx, customerID, changes); err != nil {
			return err
		}
		if err := s.profiles.Save(ctx, profile); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
		}
		if completed = customer.ApplyProfileCompletion(); completed {
			if err := s.customers.Update(ctx, customer); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete profile")
			}
		}
		result = models.NewProfileResult(profile, customer.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if completed {
			s.metrics.IncrementProfilesCompleted()
		}
		s.metrics.ObserveOperation("complete_profile", start)
	}
	s.logger.InfoContext(ctx, "customer profile saved",
		"customer_id", customerID.String(),
		"first_completion", completed,
	)
	return result, nil
}

// GetProfile returns the redacted profile. It never decrypts the SSN.
func (s *Service) GetProfile(ctx context.Context, customerID id.CustomerID) (result *models.ProfileResult, err error) {
	ctx, span := s.startSpan(ctx, "GetProfile")
	span.SetAttributes(attribute.String("customer.id", customerID.String()))
	defer func() { endSpan(span, err) }()

	customer, err := s.loadCustomer(ctx, customerID, false)
	if err != nil {
		return nil, err
	}
	profile, err := s.findProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, models.ErrProfileNotFound
	}
	return models.NewProfileResult(profile, customer.Status), nil
}

// UpdateContact changes the address and/or phone of an existing profile.
// Unchanged values are neither written nor audited.
func (s *Service) UpdateContact(ctx context.Context, customerID id.CustomerID, req *models.ProfileUpdateRequest) (result *models.ProfileResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "UpdateContact")
	span.SetAttributes(attribute.String("customer.id", customerID.String()))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	err = s.transactor.RunInTx(ctx, customerID.String(), func(ctx context.Context) error {
		customer, err := s.loadCustomer(ctx, customerID, true)
		if err != nil {
			return err
		}
		profile, err := s.findProfile(ctx, customerID)
		if err != nil {
			return err
		}
		if profile == nil {
			return models.ErrProfileNotFound
		}

		var changes []audit.ProfileChange
		if req.Address != nil {
			address := req.Address.ToAddress()
			if address != profile.Address {
				changes = append(changes, fieldChange(audit.FieldAddress, formatAddress(profile.Address), formatAddress(address)))
				profile.UpdateAddress(address, now)
			}
		}
		if req.Phone != nil && *req.Phone != profile.Phone {
			changes = append(changes, fieldChange(audit.FieldPhone, profile.Phone, *req.Phone))
			profile.UpdatePhone(*req.Phone, now)
		}

		if len(changes) > 0 {
			if err := s.recordChanges(ctx, customerID, changes); err != nil {
				return err
			}
			if err := s.profiles.Save(ctx, profile); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
			}
		}
		result = models.NewProfileResult(profile, customer.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveOperation("update_contact", start)
	}
	return result, nil
}

// profileChanges lists the fields that differ between existing (nil on first
// submission) and the new values. SSNs appear masked.
func (s *Service) profileChanges(existing *models.Profile, fields models.ProfileFields, ssn string) []audit.ProfileChange {
	var old models.Profile
	if existing != nil {
		old = *existing
	}
	oldDOB := ""
	if !old.DateOfBirth.IsZero() {
		oldDOB = old.DateOfBirth.Format(models.DateLayout)
	}

	var changes []audit.ProfileChange
	add := func(field, before, after string) {
		if before != after {
			changes = append(changes, fieldChange(field, before, after))
		}
	}
	add(audit.FieldFirstName, old.FirstName, fields.FirstName)
	add(audit.FieldLastName, old.LastName, fields.LastName)
	add(audit.FieldDateOfBirth, oldDOB, fields.DateOfBirth.Format(models.DateLayout))
	if existing == nil {
		changes = append(changes, fieldChange(audit.FieldSSN, "", models.MaskSSN(ssn)))
	} else if s.ssnChanged(existing, ssn) {
		changes = append(changes, fieldChange(audit.FieldSSN, "***-**-"+existing.SSNLastFour, models.MaskSSN(ssn)))
	}
	add(audit.FieldAddress, formatAddress(old.Address), formatAddress(fields.Address))
	add(audit.FieldPhone, old.Phone, fields.Phone)
	return changes
}

// ssnChanged compares against the stored ciphertext. An undecryptable blob
// counts as a change.
func (s *Service) ssnChanged(existing *models.Profile, ssn string) bool {
	current, err := s.cipher.Decrypt(existing.SSNEncrypted)
	if err != nil {
		return true
	}
	return current != ssn
}

func (s *Service) recordChanges(ctx context.Context, customerID id.CustomerID, changes []audit.ProfileChange) error {
	for _, change := range changes {
		change.CustomerID = customerID
		if err := s.auditor.Record(ctx, change); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit profile change")
		}
		if s.metrics != nil {
			s.metrics.IncrementFieldChange(change.FieldName)
		}
	}
	return nil
}

func fieldChange(field, before, after string) audit.ProfileChange {
	return audit.ProfileChange{FieldName: field, OldValue: before, NewValue: after}
}

func formatAddress(a models.Address) string {
	if a == (models.Address{}) {
		return ""
	}
	parts := []string{a.Street}
	if a.Unit != "" {
		parts = append(parts, a.Unit)
	}
	parts = append(parts, a.City, a.State+" "+a.ZipCode)
	return strings.Join(parts, ", ")
}
