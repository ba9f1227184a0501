//go:build integration

package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboarding/internal/customer/models"
	"onboarding/internal/customer/store/token"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *token.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = token.NewRedis(s.redis.Client, token.WithRetention(time.Hour))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLifecycle() {
	ctx := context.Background()
	customerID := id.NewCustomerID()
	now := time.Now().UTC()

	for i, hash := range []string{"a", "b", "c"} {
		t := &models.VerificationToken{
			ID:         id.NewTokenID(),
			CustomerID: customerID,
			TokenHash:  hash,
			ExpiresAt:  now.Add(24 * time.Hour),
			CreatedAt:  now.Add(time.Duration(i-2) * 40 * time.Minute),
		}
		s.Require().NoError(s.store.Create(ctx, t))
	}

	n, err := s.store.CountCreatedSince(ctx, customerID, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(2, n)

	got, err := s.store.TakeByHash(ctx, "c")
	s.Require().NoError(err)
	s.Equal(customerID, got.CustomerID)
	s.True(got.ExpiresAt.Equal(now.Add(24 * time.Hour)))

	_, err = s.store.TakeByHash(ctx, "c")
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err = s.store.CountCreatedSince(ctx, customerID, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n, "redeemed tokens leave the window")
}

func (s *RedisStoreSuite) TestExpiredRecordStillResolvable() {
	ctx := context.Background()
	past := time.Now().Add(-25 * time.Hour)
	t := &models.VerificationToken{
		ID:         id.NewTokenID(),
		CustomerID: id.NewCustomerID(),
		TokenHash:  "stale",
		ExpiresAt:  past.Add(24 * time.Hour),
		CreatedAt:  past,
	}
	s.Require().NoError(s.store.Create(ctx, t))

	got, err := s.store.TakeByHash(ctx, "stale")
	s.Require().NoError(err)
	s.True(got.IsExpired(time.Now()))
}
