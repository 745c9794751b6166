package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/billrun/internal/model"
)

// CreateContact validates and inserts a contact, assigning its ID.
func (s *SQLiteStorage) CreateContact(ctx context.Context, contact *model.Contact) error {
	return s.createContact(ctx, s.db, contact)
}

func (s *SQLiteStorage) createContact(ctx context.Context, q dbtx, contact *model.Contact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("%w: contact", ErrNilParameter)
	}
	if err := contact.Validate(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO contacts (name, email) VALUES (?, ?)`,
		contact.Name, contact.Email)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", mapUniqueErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get contact id: %w", err)
	}
	contact.ID = id
	return nil
}

// GetContact returns the contact with the given ID.
func (s *SQLiteStorage) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	return s.getContact(ctx, s.db, id)
}

func (s *SQLiteStorage) getContact(ctx context.Context, q dbtx, id int64) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	var contact model.Contact
	err := q.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM contacts WHERE id = ?`, id).
		Scan(&contact.ID, &contact.Name, &contact.Email, &contact.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contact %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// ListContacts returns all contacts ordered by name.
func (s *SQLiteStorage) ListContacts(ctx context.Context) ([]model.Contact, error) {
	return s.listContacts(ctx, s.db)
}

func (s *SQLiteStorage) listContacts(ctx context.Context, q dbtx) ([]model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []model.Contact
	for rows.Next() {
		var contact model.Contact
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.Email, &contact.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// DeleteContact removes a contact. Contacts referenced by schedules or bills
// are protected and cannot be deleted.
func (s *SQLiteStorage) DeleteContact(ctx context.Context, id int64) error {
	return s.deleteContact(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteContact(ctx context.Context, q dbtx, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", mapProtectErr(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: contact %d", ErrNotFound, id)
	}
	return nil
}
