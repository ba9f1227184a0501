package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) token(customerID id.CustomerID, hash string, createdAt time.Time) *models.VerificationToken {
	return &models.VerificationToken{
		ID:         id.NewTokenID(),
		CustomerID: customerID,
		TokenHash:  hash,
		ExpiresAt:  createdAt.Add(24 * time.Hour),
		CreatedAt:  createdAt,
	}
}

func (s *InMemoryStoreSuite) TestTakeByHashIsSingleUse() {
	customerID := id.NewCustomerID()
	s.Require().NoError(s.store.Create(s.ctx, s.token(customerID, "h1", s.now)))

	got, err := s.store.TakeByHash(s.ctx, "h1")
	s.Require().NoError(err)
	s.Equal(customerID, got.CustomerID)

	_, err = s.store.TakeByHash(s.ctx, "h1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDuplicateDigest() {
	s.Require().NoError(s.store.Create(s.ctx, s.token(id.NewCustomerID(), "dup", s.now)))
	err := s.store.Create(s.ctx, s.token(id.NewCustomerID(), "dup", s.now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestConcurrentTake() {
	s.Require().NoError(s.store.Create(s.ctx, s.token(id.NewCustomerID(), "race", s.now)))

	const goroutines = 40
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		notFound atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.TakeByHash(s.ctx, "race")
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), winners.Load())
	s.Equal(int32(goroutines-1), notFound.Load())
}

func (s *InMemoryStoreSuite) TestCountCreatedSince() {
	customerID := id.NewCustomerID()
	other := id.NewCustomerID()

	s.Require().NoError(s.store.Create(s.ctx, s.token(customerID, "old", s.now.Add(-2*time.Hour))))
	s.Require().NoError(s.store.Create(s.ctx, s.token(customerID, "edge", s.now.Add(-time.Hour))))
	s.Require().NoError(s.store.Create(s.ctx, s.token(customerID, "new", s.now.Add(-time.Minute))))
	s.Require().NoError(s.store.Create(s.ctx, s.token(other, "other", s.now)))

	n, err := s.store.CountCreatedSince(s.ctx, customerID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	customerID := id.NewCustomerID()
	expired := s.token(customerID, "expired", s.now.Add(-48*time.Hour))
	live := s.token(customerID, "live", s.now)
	s.Require().NoError(s.store.Create(s.ctx, expired))
	s.Require().NoError(s.store.Create(s.ctx, live))

	n, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.TakeByHash(s.ctx, "expired")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.TakeByHash(s.ctx, "live")
	s.NoError(err)
}
