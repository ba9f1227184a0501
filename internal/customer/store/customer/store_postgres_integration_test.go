//go:build integration

package customer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboarding/internal/customer/models"
	"onboarding/internal/customer/store/customer"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	txcontext "onboarding/pkg/platform/tx"
	"onboarding/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *customer.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = customer.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "profile_audit", "verification_tokens", "customer_profiles", "customers")
	s.Require().NoError(err)
}

func newTestCustomer(email string) *models.Customer {
	c, err := models.NewCustomer(id.NewCustomerID(), email, "$2a$12$hash", time.Now().UTC().Truncate(time.Microsecond))
	if err != nil {
		panic(err)
	}
	return c
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := newTestCustomer("round@example.com")
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByEmail(ctx, "round@example.com")
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(models.StatusPendingVerification, found.Status)
	s.Nil(found.VerifiedAt)
	s.True(c.CreatedAt.Equal(found.CreatedAt))

	found.Verify(time.Now().UTC())
	s.Require().NoError(s.store.Update(ctx, found))

	reloaded, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, reloaded.Status)
	s.NotNil(reloaded.VerifiedAt)
}

func (s *PostgresStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewCustomerID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(context.Background(), newTestCustomer("ghost@example.com"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentDuplicateEmail verifies the unique index lets exactly one
// registration win and reports the rest as already used.
func (s *PostgresStoreSuite) TestConcurrentDuplicateEmail() {
	ctx := context.Background()
	const goroutines = 30

	var (
		wg      sync.WaitGroup
		success atomic.Int32
		taken   atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestCustomer("race@example.com"))
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

func (s *PostgresStoreSuite) TestFindForUpdateInsideTransaction() {
	ctx := context.Background()
	c := newTestCustomer("locked@example.com")
	s.Require().NoError(s.store.Create(ctx, c))

	transactor := txcontext.NewSQLTransactor(s.postgres.DB)
	err := transactor.RunInTx(ctx, c.ID.String(), func(ctx context.Context) error {
		locked, err := s.store.FindByIDForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		locked.Verify(time.Now().UTC())
		return s.store.Update(ctx, locked)
	})
	s.Require().NoError(err)

	reloaded, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.True(reloaded.IsVerified())
}
