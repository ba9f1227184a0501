package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
	txcontext "onboarding/pkg/platform/tx"
)

// PostgresStore persists profiles in PostgreSQL. The SSN column holds the
// field cipher blob as BYTEA.
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

func (s *PostgresStore) Find(ctx context.Context, customerID id.CustomerID) (*models.Profile, error) {
	query := `
		SELECT customer_id, first_name, last_name, date_of_birth, ssn_encrypted, ssn_last_four,
			   street, unit, city, state, zip_code, phone, created_at, updated_at
		FROM customer_profiles
		WHERE customer_id = $1
	`
	var (
		p         models.Profile
		rawID     uuid.UUID
		updatedAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(customerID)).Scan(
		&rawID,
		&p.FirstName,
		&p.LastName,
		&p.DateOfBirth,
		&p.SSNEncrypted,
		&p.SSNLastFour,
		&p.Address.Street,
		&p.Address.Unit,
		&p.Address.City,
		&p.Address.State,
		&p.Address.ZipCode,
		&p.Phone,
		&p.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", customerID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	p.CustomerID = id.CustomerID(rawID)
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return &p, nil
}

// Save upserts the profile. created_at is never overwritten.
func (s *PostgresStore) Save(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO customer_profiles (
			customer_id, first_name, last_name, date_of_birth, ssn_encrypted, ssn_last_four,
			street, unit, city, state, zip_code, phone, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (customer_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			date_of_birth = EXCLUDED.date_of_birth,
			ssn_encrypted = EXCLUDED.ssn_encrypted,
			ssn_last_four = EXCLUDED.ssn_last_four,
			street = EXCLUDED.street,
			unit = EXCLUDED.unit,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			phone = EXCLUDED.phone,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.CustomerID),
		p.FirstName,
		p.LastName,
		p.DateOfBirth,
		p.SSNEncrypted,
		p.SSNLastFour,
		p.Address.Street,
		p.Address.Unit,
		p.Address.City,
		p.Address.State,
		p.Address.ZipCode,
		p.Phone,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
