//go:build integration

package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboarding/internal/customer/models"
	"onboarding/internal/customer/store/customer"
	"onboarding/internal/customer/store/profile"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	customers *customer.PostgresStore
	store     *profile.PostgresStore
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
	s.customers = customer.NewPostgres(s.postgres.DB)
	s.store = profile.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "customer_profiles", "verification_tokens", "customers")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestUpsert() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	c, err := models.NewCustomer(id.NewCustomerID(), "profile@example.com", "hash", now)
	s.Require().NoError(err)
	c.Verify(now)
	s.Require().NoError(s.customers.Create(ctx, c))

	_, err = s.store.Find(ctx, c.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	fields := models.ProfileFields{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
		Address:     models.Address{Street: "1 Main St", Unit: "2B", City: "Springfield", State: "IL", ZipCode: "62701"},
	}
	p := models.NewProfile(c.ID, fields, []byte{0xde, 0xad, 0xbe, 0xef}, "6789", now)
	s.Require().NoError(s.store.Save(ctx, p))

	found, err := s.store.Find(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(p.SSNEncrypted, found.SSNEncrypted)
	s.Equal("2B", found.Address.Unit)
	s.Nil(found.UpdatedAt)

	fields.FirstName = "Augusta"
	found.Replace(fields, []byte{0x01}, "4321", now.Add(time.Hour))
	s.Require().NoError(s.store.Save(ctx, found))

	replaced, err := s.store.Find(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Augusta", replaced.FirstName)
	s.Equal("4321", replaced.SSNLastFour)
	s.True(now.Equal(replaced.CreatedAt), "created_at is preserved")
	s.Require().NotNil(replaced.UpdatedAt)
}
