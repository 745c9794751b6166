package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/billrun/internal/model"
)

// CreateCreditor validates and inserts a creditor, assigning its ID. The
// IBAN is persisted in its canonical space-stripped form.
func (s *SQLiteStorage) CreateCreditor(ctx context.Context, creditor *model.Creditor) error {
	return s.createCreditor(ctx, s.db, creditor)
}

func (s *SQLiteStorage) createCreditor(ctx context.Context, q dbtx, creditor *model.Creditor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if creditor == nil {
		return fmt.Errorf("%w: creditor", ErrNilParameter)
	}
	if err := creditor.Validate(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO creditors (name, city, pcode, country, email, iban)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		creditor.Name, creditor.City, creditor.PostCode, creditor.Country,
		creditor.Email, creditor.IBAN)
	if err != nil {
		return fmt.Errorf("failed to insert creditor: %w", mapUniqueErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get creditor id: %w", err)
	}
	creditor.ID = id
	return nil
}

// GetCreditor returns the creditor with the given ID.
func (s *SQLiteStorage) GetCreditor(ctx context.Context, id int64) (*model.Creditor, error) {
	return s.getCreditor(ctx, s.db, id)
}

func (s *SQLiteStorage) getCreditor(ctx context.Context, q dbtx, id int64) (*model.Creditor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	var creditor model.Creditor
	err := q.QueryRowContext(ctx,
		`SELECT id, name, city, pcode, country, email, iban, created_at
		 FROM creditors WHERE id = ?`, id).
		Scan(&creditor.ID, &creditor.Name, &creditor.City, &creditor.PostCode,
			&creditor.Country, &creditor.Email, &creditor.IBAN, &creditor.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: creditor %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creditor: %w", err)
	}
	return &creditor, nil
}

// ListCreditors returns all creditors ordered by name.
func (s *SQLiteStorage) ListCreditors(ctx context.Context) ([]model.Creditor, error) {
	return s.listCreditors(ctx, s.db)
}

func (s *SQLiteStorage) listCreditors(ctx context.Context, q dbtx) ([]model.Creditor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, name, city, pcode, country, email, iban, created_at
		 FROM creditors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list creditors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creditors []model.Creditor
	for rows.Next() {
		var creditor model.Creditor
		if err := rows.Scan(&creditor.ID, &creditor.Name, &creditor.City,
			&creditor.PostCode, &creditor.Country, &creditor.Email,
			&creditor.IBAN, &creditor.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creditor: %w", err)
		}
		creditors = append(creditors, creditor)
	}
	return creditors, rows.Err()
}

// DeleteCreditor removes a creditor. Creditors referenced by schedules or
// bills are protected and cannot be deleted.
func (s *SQLiteStorage) DeleteCreditor(ctx context.Context, id int64) error {
	return s.deleteCreditor(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCreditor(ctx context.Context, q dbtx, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM creditors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete creditor: %w", mapProtectErr(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: creditor %d", ErrNotFound, id)
	}
	return nil
}
