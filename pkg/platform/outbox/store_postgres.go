// Package outbox implements the transactional outbox: events are inserted in
// the same transaction as the state change that produced them and a Relay
// later publishes them to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onboarding/pkg/platform/events"
	txcontext "onboarding/pkg/platform/tx"
)

// Entry is one unpublished outbox row. Payload is the JSON-encoded envelope.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	Attempts      int
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Publish appends env to the outbox. It joins the caller's transaction, so
// the event is only visible to the relay once that transaction commits.
func (s *PostgresStore) Publish(ctx context.Context, env events.Envelope) error {
	eventID, err := uuid.Parse(env.ID)
	if err != nil {
		return fmt.Errorf("outbox event id: %w", err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}
	aggregateType, _, _ := strings.Cut(env.Type, ".")

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		env.AggregateID,
		env.Type,
		payload,
		env.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnpublished locks up to limit unpublished rows, oldest first. Rows
// locked by another relay are skipped. Call inside a transaction.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, attempts
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1, attempts = attempts + 1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	return nil
}

// DeletePublishedBefore purges rows published before cutoff.
func (s *PostgresStore) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge outbox rows affected: %w", err)
	}
	return int(n), nil
}
