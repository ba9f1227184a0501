//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "onboarding/pkg/domain"
	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/audit/store/postgres"
	"onboarding/pkg/platform/tx"
	"onboarding/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "profile_audit"))
}

func (s *StoreSuite) change(customerID id.CustomerID, field, oldValue, newValue string, at time.Time) audit.ProfileChange {
	return audit.ProfileChange{
		ID:         id.NewAuditRecordID(),
		CustomerID: customerID,
		FieldName:  field,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedBy:  customerID.String(),
		ChangedAt:  at,
		RequestID:  "req-1",
	}
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	customerID := id.NewCustomerID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, s.change(customerID, audit.FieldSSN, "", "***-**-1234", now)))
	s.Require().NoError(s.store.Append(ctx, s.change(customerID, audit.FieldPhone, "+15550000000", "+15551111111", now.Add(time.Second))))
	s.Require().NoError(s.store.Append(ctx, s.change(id.NewCustomerID(), audit.FieldPhone, "", "x", now)))

	changes, err := s.store.ListByCustomer(ctx, customerID)
	s.Require().NoError(err)
	s.Require().Len(changes, 2)
	s.Equal(audit.FieldSSN, changes[0].FieldName)
	s.Empty(changes[0].OldValue)
	s.Equal("***-**-1234", changes[0].NewValue)
	s.Equal("+15550000000", changes[1].OldValue)
	s.True(changes[0].ChangedAt.Equal(now))
}

func (s *StoreSuite) TestRollbackDiscardsAppend() {
	ctx := context.Background()
	customerID := id.NewCustomerID()
	txr := tx.NewSQLTransactor(s.postgres.DB)

	err := txr.RunInTx(ctx, customerID.String(), func(ctx context.Context) error {
		if err := s.store.Append(ctx, s.change(customerID, audit.FieldAddress, "", "1 Main St", time.Now())); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	changes, err := s.store.ListByCustomer(ctx, customerID)
	s.Require().NoError(err)
	s.Empty(changes)
}
