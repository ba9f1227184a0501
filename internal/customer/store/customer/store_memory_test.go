package customer

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
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newCustomer(email string) *models.Customer {
	c, err := models.NewCustomer(id.NewCustomerID(), email, "hash", time.Now())
	if err != nil {
		panic(err)
	}
	return c
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	c := newCustomer("user@example.com")
	s.Require().NoError(s.store.Create(s.ctx, c))

	byID, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Email, byID.Email)

	byEmail, err := s.store.FindByEmail(s.ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(c.ID, byEmail.ID)
}

func (s *InMemoryStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewCustomerID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(s.ctx, newCustomer("ghost@example.com"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDuplicateEmail() {
	s.Require().NoError(s.store.Create(s.ctx, newCustomer("dup@example.com")))
	err := s.store.Create(s.ctx, newCustomer("dup@example.com"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryStoreSuite) TestConcurrentDuplicateEmail() {
	const goroutines = 50
	var (
		wg      sync.WaitGroup
		success atomic.Int32
		taken   atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, newCustomer("race@example.com"))
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), success.Load())
	s.Equal(int32(goroutines-1), taken.Load())
}

func (s *InMemoryStoreSuite) TestReturnsCopies() {
	c := newCustomer("copy@example.com")
	s.Require().NoError(s.store.Create(s.ctx, c))

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	found.Verify(time.Now())

	again, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingVerification, again.Status)

	s.Require().NoError(s.store.Update(s.ctx, found))
	again, err = s.store.FindByIDForUpdate(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, again.Status)
	s.NotNil(again.VerifiedAt)
}
