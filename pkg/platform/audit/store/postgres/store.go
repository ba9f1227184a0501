package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "onboarding/pkg/domain"
	audit "onboarding/pkg/platform/audit"
	txcontext "onboarding/pkg/platform/tx"
)

// Store implements audit.Store on the profile_audit table. Appends made
// inside a transaction commit or roll back with the profile write.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, change audit.ProfileChange) error {
	query := `
		INSERT INTO profile_audit (id, customer_id, field_name, old_value, new_value, changed_by, request_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(change.ID),
		uuid.UUID(change.CustomerID),
		change.FieldName,
		nullIfEmpty(change.OldValue),
		nullIfEmpty(change.NewValue),
		change.ChangedBy,
		change.RequestID,
		change.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile audit: %w", err)
	}
	return nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID id.CustomerID) ([]audit.ProfileChange, error) {
	query := `
		SELECT id, customer_id, field_name, old_value, new_value, changed_by, request_id, changed_at
		FROM profile_audit
		WHERE customer_id = $1
		ORDER BY changed_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(customerID))
	if err != nil {
		return nil, fmt.Errorf("list profile audit: %w", err)
	}
	defer rows.Close()

	var changes []audit.ProfileChange
	for rows.Next() {
		var (
			recordID, custID   uuid.UUID
			oldValue, newValue sql.NullString
			change             audit.ProfileChange
		)
		if err := rows.Scan(&recordID, &custID, &change.FieldName, &oldValue, &newValue,
			&change.ChangedBy, &change.RequestID, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan profile audit: %w", err)
		}
		change.ID = id.AuditRecordID(recordID)
		change.CustomerID = id.CustomerID(custID)
		change.OldValue = oldValue.String
		change.NewValue = newValue.String
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile audit: %w", err)
	}
	return changes, nil
}

func nullIfEmpty(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
