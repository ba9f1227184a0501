package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	txcontext "onboarding/pkg/platform/tx"
)

// PostgresStore persists tokens in PostgreSQL. TakeByHash is a single
// DELETE ... RETURNING, so concurrent redemptions of one digest cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, t *models.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (id, customer_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID),
		uuid.UUID(t.CustomerID),
		t.TokenHash,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("token digest exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) TakeByHash(ctx context.Context, hash string) (*models.VerificationToken, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE token_hash = $1
		RETURNING id, customer_id, token_hash, expires_at, created_at
	`
	var (
		t          models.VerificationToken
		rawID      uuid.UUID
		customerID uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, hash).Scan(
		&rawID,
		&customerID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification token: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("take verification token: %w", err)
	}
	t.ID = id.TokenID(rawID)
	t.CustomerID = id.CustomerID(customerID)
	return &t, nil
}

func (s *PostgresStore) CountCreatedSince(ctx context.Context, customerID id.CustomerID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(1)
		FROM verification_tokens
		WHERE customer_id = $1 AND created_at >= $2
	`
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(customerID), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count verification tokens: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return int(n), nil
}
