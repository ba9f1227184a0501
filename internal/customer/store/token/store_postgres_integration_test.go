//go:build integration

package token_test

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
	"onboarding/internal/customer/store/token"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/platform/tx"
	"onboarding/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *token.PostgresStore
	customerID id.CustomerID
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
	s.store = token.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "verification_tokens", "customer_profiles", "customers"))

	c, err := models.NewCustomer(id.NewCustomerID(), "tokens@example.com", "hash", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(customer.NewPostgres(s.postgres.DB).Create(ctx, c))
	s.customerID = c.ID
}

func (s *PostgresStoreSuite) newToken(hash string, createdAt time.Time) *models.VerificationToken {
	return &models.VerificationToken{
		ID:         id.NewTokenID(),
		CustomerID: s.customerID,
		TokenHash:  hash,
		ExpiresAt:  createdAt.Add(24 * time.Hour),
		CreatedAt:  createdAt,
	}
}

func (s *PostgresStoreSuite) TestConcurrentTakeByHash() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newToken("race", time.Now())))

	const goroutines = 20
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		notFound atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.TakeByHash(ctx, "race")
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

func (s *PostgresStoreSuite) TestCountAndSweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Create(ctx, s.newToken("old", now.Add(-30*time.Hour))))
	s.Require().NoError(s.store.Create(ctx, s.newToken("recent-1", now.Add(-10*time.Minute))))
	s.Require().NoError(s.store.Create(ctx, s.newToken("recent-2", now.Add(-time.Minute))))

	n, err := s.store.CountCreatedSince(ctx, s.customerID, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(2, n)

	deleted, err := s.store.DeleteExpired(ctx, now)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	err = s.store.Create(ctx, s.newToken("recent-1", now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestTakeByHashRollsBackWithTransaction() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newToken("rollback", time.Now())))

	failed := errors.New("customer update failed")
	err := tx.NewSQLTransactor(s.postgres.DB).RunInTx(ctx, "rollback", func(ctx context.Context) error {
		_, err := s.store.TakeByHash(ctx, "rollback")
		s.Require().NoError(err)
		return failed
	})
	s.Require().ErrorIs(err, failed)

	taken, err := s.store.TakeByHash(ctx, "rollback")
	s.Require().NoError(err)
	s.Equal("rollback", taken.TokenHash)
}
