package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	txcontext "onboarding/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists customers in PostgreSQL. The unique index on
// customers.email is the final authority on email uniqueness.
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

func (s *PostgresStore) Create(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (id, email, password_hash, status, created_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Email,
		c.PasswordHash,
		string(c.Status),
		c.CreatedAt,
		c.VerifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == "customers_pkey" {
				return fmt.Errorf("customer id exists: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("customer email taken: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

const selectCustomer = `
	SELECT id, email, password_hash, status, created_at, verified_at
	FROM customers
`

func (s *PostgresStore) FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	return s.findOne(ctx, selectCustomer+` WHERE id = $1`, uuid.UUID(customerID))
}

// FindByIDForUpdate locks the customer row until the surrounding transaction ends.
// Outside a transaction the lock is released immediately.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	return s.findOne(ctx, selectCustomer+` WHERE id = $1 FOR UPDATE`, uuid.UUID(customerID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.findOne(ctx, selectCustomer+` WHERE email = $1`, email)
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers
		SET status = $2, verified_at = $3
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(c.ID), string(c.Status), c.VerifiedAt)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update customer rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Customer, error) {
	var (
		c          models.Customer
		rawID      uuid.UUID
		status     string
		verifiedAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(
		&rawID,
		&c.Email,
		&c.PasswordHash,
		&status,
		&c.CreatedAt,
		&verifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select customer: %w", err)
	}
	c.ID = id.CustomerID(rawID)
	c.Status = models.Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}
