// Package storage provides the data persistence layer for billrun.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Storage errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint violation (email, IBAN).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrProtected indicates a delete was rejected because dependent
	// schedules or bills still reference the entity.
	ErrProtected = errors.New("entity is referenced and cannot be deleted")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a numeric identifier is set.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// mapUniqueErr translates unique-constraint violations on insert into
// ErrDuplicate.
func mapUniqueErr(err error) error {
	if isConstraint(err, sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// mapProtectErr translates foreign-key violations on delete into
// ErrProtected: dependent schedules or bills still reference the row.
func mapProtectErr(err error) error {
	if isConstraint(err, sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintTrigger) {
		return fmt.Errorf("%w: %v", ErrProtected, err)
	}
	return err
}

func isConstraint(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}
