// Package profile persists customer profiles keyed by customer ID.
package profile

import (
	"context"
	"fmt"
	"sync"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a map. Save is create-or-replace.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.CustomerID]*models.Profile
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.CustomerID]*models.Profile)}
}

func (s *InMemoryStore) Find(_ context.Context, customerID id.CustomerID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[customerID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", customerID, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.CustomerID] = p.Clone()
	return nil
}
