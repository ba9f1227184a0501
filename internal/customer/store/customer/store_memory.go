// Package customer persists Customer aggregates.
package customer

import (
	"context"
	"fmt"
	"sync"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

// Error Contract:
//   - ErrNotFound when the customer does not exist
//   - ErrAlreadyUsed when the email is already taken
//
// InMemoryStore keeps customers in maps for tests and local runs.
// Returned customers are copies; mutate and call Update to persist.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.CustomerID]*models.Customer
	byEmail map[string]id.CustomerID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.CustomerID]*models.Customer),
		byEmail: make(map[string]id.CustomerID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[c.Email]; taken {
		return fmt.Errorf("customer email taken: %w", sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.byID[c.ID]; exists {
		return fmt.Errorf("customer id exists: %w", sentinel.ErrConflict)
	}
	s.byID[c.ID] = clone(c)
	s.byEmail[c.Email] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, customerID id.CustomerID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return clone(c), nil
}

// FindByIDForUpdate is FindByID; in-memory callers serialize with a sharded transactor.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	return s.FindByID(ctx, customerID)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customerID, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("customer by email: %w", sentinel.ErrNotFound)
	}
	return clone(s.byID[customerID]), nil
}

func (s *InMemoryStore) Update(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[c.ID]
	if !ok {
		return fmt.Errorf("customer %s: %w", c.ID, sentinel.ErrNotFound)
	}
	if existing.Email != c.Email {
		return fmt.Errorf("customer email is immutable: %w", sentinel.ErrInvalidState)
	}
	s.byID[c.ID] = clone(c)
	return nil
}

func clone(c *models.Customer) *models.Customer {
	cp := *c
	if c.VerifiedAt != nil {
		t := *c.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}
