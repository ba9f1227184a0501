//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"onboarding/pkg/platform/events"
	"onboarding/pkg/platform/outbox"
	"onboarding/pkg/platform/tx"
	"onboarding/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *outbox.PostgresStore
	txr      *tx.SQLTransactor
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = outbox.NewPostgres(s.postgres.DB)
	s.txr = tx.NewSQLTransactor(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *PostgresStoreSuite) publish(ctx context.Context, at time.Time) events.Envelope {
	env, err := events.NewEnvelope("customer.registered", uuid.NewString(), map[string]string{"email": "a@example.com"}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Publish(ctx, env))
	return env
}

func (s *PostgresStoreSuite) TestPublishFetchMark() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	first := s.publish(ctx, now)
	s.publish(ctx, now.Add(time.Second))

	var entries []outbox.Entry
	err := s.txr.RunInTx(ctx, "", func(ctx context.Context) error {
		var err error
		entries, err = s.store.FetchUnpublished(ctx, 10)
		if err != nil {
			return err
		}
		return s.store.MarkPublished(ctx, []uuid.UUID{entries[0].ID}, now)
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.ID, entries[0].ID.String())
	s.Equal("customer", entries[0].AggregateType)
	s.Equal(first.AggregateID, entries[0].AggregateID)

	var decoded events.Envelope
	s.Require().NoError(json.Unmarshal(entries[0].Payload, &decoded))
	s.Equal(first.Type, decoded.Type)

	remaining, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Len(remaining, 1)

	purged, err := s.store.DeletePublishedBefore(ctx, now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(1, purged)
}

func (s *PostgresStoreSuite) TestRolledBackPublishIsInvisible() {
	ctx := context.Background()
	err := s.txr.RunInTx(ctx, "", func(ctx context.Context) error {
		s.publish(ctx, time.Now())
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	entries, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *PostgresStoreSuite) TestSkipLockedAcrossRelays() {
	ctx := context.Background()
	s.publish(ctx, time.Now())

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.txr.RunInTx(ctx, "", func(ctx context.Context) error {
			_, err := s.store.FetchUnpublished(ctx, 10)
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	err := s.txr.RunInTx(ctx, "", func(ctx context.Context) error {
		entries, err := s.store.FetchUnpublished(ctx, 10)
		s.Empty(entries)
		return err
	})
	close(release)
	s.Require().NoError(err)
}
