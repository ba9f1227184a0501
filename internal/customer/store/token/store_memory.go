// Package token persists verification token digests.
//
// Error Contract:
//   - TakeByHash returns ErrNotFound when no record has the digest
//   - Create returns ErrConflict when the digest already exists
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

// InMemoryStore indexes tokens by digest under one lock, which makes
// TakeByHash atomic.
type InMemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*models.VerificationToken
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byHash: make(map[string]*models.VerificationToken)}
}

func (s *InMemoryStore) Create(_ context.Context, t *models.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[t.TokenHash]; exists {
		return fmt.Errorf("token digest exists: %w", sentinel.ErrConflict)
	}
	cp := *t
	s.byHash[t.TokenHash] = &cp
	return nil
}

// TakeByHash removes and returns the record with the given digest.
func (s *InMemoryStore) TakeByHash(_ context.Context, hash string) (*models.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("verification token: %w", sentinel.ErrNotFound)
	}
	delete(s.byHash, hash)
	return t, nil
}

// CountCreatedSince counts the customer's tokens created at or after since.
// Redeemed or swept records no longer count.
func (s *InMemoryStore) CountCreatedSince(_ context.Context, customerID id.CustomerID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.byHash {
		if t.CustomerID == customerID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for hash, t := range s.byHash {
		if t.IsExpired(now) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}
