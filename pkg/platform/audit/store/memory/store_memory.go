package memory

import (
	"context"
	"sync"

	id "onboarding/pkg/domain"
	audit "onboarding/pkg/platform/audit"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	changes map[id.CustomerID][]audit.ProfileChange
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{changes: make(map[id.CustomerID][]audit.ProfileChange)}
}

func (s *InMemoryStore) Append(_ context.Context, change audit.ProfileChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes[change.CustomerID] = append(s.changes[change.CustomerID], change)
	return nil
}

// ListByCustomer returns the customer's changes in the order they were appended.
func (s *InMemoryStore) ListByCustomer(_ context.Context, customerID id.CustomerID) ([]audit.ProfileChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.ProfileChange{}, s.changes[customerID]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = make(map[id.CustomerID][]audit.ProfileChange)
}
