package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// dbtx is the subset of database operations shared by *sql.DB and *sql.Tx,
// letting every query run either standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Storage methods delegate to the shared implementations with the
// transaction as the query target.
func (t *sqliteTransaction) CreateContact(ctx context.Context, contact *model.Contact) error {
	return t.storage.createContact(ctx, t.tx, contact)
}

func (t *sqliteTransaction) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	return t.storage.getContact(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListContacts(ctx context.Context) ([]model.Contact, error) {
	return t.storage.listContacts(ctx, t.tx)
}

func (t *sqliteTransaction) DeleteContact(ctx context.Context, id int64) error {
	return t.storage.deleteContact(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateCreditor(ctx context.Context, creditor *model.Creditor) error {
	return t.storage.createCreditor(ctx, t.tx, creditor)
}

func (t *sqliteTransaction) GetCreditor(ctx context.Context, id int64) (*model.Creditor, error) {
	return t.storage.getCreditor(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListCreditors(ctx context.Context) ([]model.Creditor, error) {
	return t.storage.listCreditors(ctx, t.tx)
}

func (t *sqliteTransaction) DeleteCreditor(ctx context.Context, id int64) error {
	return t.storage.deleteCreditor(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	return t.storage.createSchedule(ctx, t.tx, schedule)
}

func (t *sqliteTransaction) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	return t.storage.getSchedule(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	return t.storage.listSchedules(ctx, t.tx)
}

func (t *sqliteTransaction) GetDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	return t.storage.getDueSchedules(ctx, t.tx, now)
}

func (t *sqliteTransaction) UpdateScheduleNextBillingDate(ctx context.Context, id int64, next time.Time) error {
	return t.storage.updateScheduleNextBillingDate(ctx, t.tx, id, next)
}

func (t *sqliteTransaction) SetScheduleActive(ctx context.Context, id int64, active bool) error {
	return t.storage.setScheduleActive(ctx, t.tx, id, active)
}

func (t *sqliteTransaction) DeleteSchedule(ctx context.Context, id int64) error {
	return t.storage.deleteSchedule(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateBill(ctx context.Context, bill *model.Bill) error {
	return t.storage.createBill(ctx, t.tx, bill)
}

func (t *sqliteTransaction) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	return t.storage.getBill(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetBillsByStatus(ctx context.Context, status model.BillStatus) ([]model.Bill, error) {
	return t.storage.getBillsByStatus(ctx, t.tx, status)
}

func (t *sqliteTransaction) MarkBillSent(ctx context.Context, id string, sentAt time.Time) error {
	return t.storage.markBillSent(ctx, t.tx, id, sentAt)
}

func (t *sqliteTransaction) MarkOverdueBills(ctx context.Context, now time.Time) (int64, error) {
	return t.storage.markOverdueBills(ctx, t.tx, now)
}

func (t *sqliteTransaction) MatchPayment(ctx context.Context, match service.PaymentMatch) (int64, error) {
	return t.storage.matchPayment(ctx, t.tx, match)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
