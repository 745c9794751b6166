package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS contacts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					email TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS creditors (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					city TEXT NOT NULL,
					pcode TEXT NOT NULL,
					country TEXT NOT NULL,
					email TEXT UNIQUE NOT NULL,
					iban TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS schedules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					contact_id INTEGER NOT NULL REFERENCES contacts(id) ON DELETE RESTRICT,
					creditor_id INTEGER NOT NULL REFERENCES creditors(id) ON DELETE RESTRICT,
					amount TEXT NOT NULL,
					frequency TEXT NOT NULL,
					frequency_params TEXT NOT NULL DEFAULT '{}',
					description_template TEXT NOT NULL,
					start_date DATETIME NOT NULL,
					next_billing_date DATETIME NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS bills (
					id TEXT PRIMARY KEY,
					contact_id INTEGER NOT NULL REFERENCES contacts(id) ON DELETE RESTRICT,
					creditor_id INTEGER NOT NULL REFERENCES creditors(id) ON DELETE RESTRICT,
					schedule_id INTEGER REFERENCES schedules(id) ON DELETE SET NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					reference_number TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					billing_date DATETIME NOT NULL,
					due_date DATETIME,
					paid_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add currency, language, and sent_at",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE schedules ADD COLUMN currency TEXT NOT NULL DEFAULT 'CHF'`,
				`ALTER TABLE schedules ADD COLUMN language TEXT NOT NULL DEFAULT 'en'`,
				`ALTER TABLE bills ADD COLUMN currency TEXT NOT NULL DEFAULT 'CHF'`,
				`ALTER TABLE bills ADD COLUMN language TEXT NOT NULL DEFAULT 'en'`,
				`ALTER TABLE bills ADD COLUMN sent_at DATETIME`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add lookup indexes for due schedules and reconciliation",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_schedules_next_billing_date ON schedules(next_billing_date)`,
				`CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status)`,
				`CREATE INDEX IF NOT EXISTS idx_bills_reference_number ON bills(reference_number)`,
				`CREATE INDEX IF NOT EXISTS idx_bills_due_date ON bills(due_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
