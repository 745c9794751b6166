package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/reference"
	"github.com/ledgerline/billrun/internal/service"
)

// CreateBill validates and inserts a bill. First-save defaults are applied
// here: a fresh UUID when the ID is unset, a due date one calendar month
// after the billing date when none is given, and a structured creditor
// reference derived from the description, billing date, and contact email.
func (s *SQLiteStorage) CreateBill(ctx context.Context, bill *model.Bill) error {
	return s.createBill(ctx, s.db, bill)
}

func (s *SQLiteStorage) createBill(ctx context.Context, q dbtx, bill *model.Bill) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if bill == nil {
		return fmt.Errorf("%w: bill", ErrNilParameter)
	}
	if err := bill.Validate(); err != nil {
		return err
	}

	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if bill.DueDate.IsZero() {
		bill.DueDate = addOneMonth(bill.BillingDate)
	}
	if bill.ReferenceNumber == "" {
		contact, err := s.getContact(ctx, q, bill.ContactID)
		if err != nil {
			return fmt.Errorf("failed to resolve contact for reference: %w", err)
		}
		ref, err := reference.ForBill(bill.Description, bill.BillingDate, contact.Email)
		if err != nil {
			return fmt.Errorf("failed to generate reference number: %w", err)
		}
		bill.ReferenceNumber = ref
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO bills (id, contact_id, creditor_id, schedule_id, amount,
		                    currency, language, description, reference_number,
		                    status, billing_date, due_date, sent_at, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.ContactID, bill.CreditorID, bill.ScheduleID,
		bill.Amount.StringFixed(2), bill.Currency, bill.Language,
		bill.Description, bill.ReferenceNumber, string(bill.Status),
		bill.BillingDate.UTC(), bill.DueDate.UTC(),
		nullableTime(bill.SentAt), nullableTime(bill.PaidAt))
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", mapUniqueErr(err))
	}
	return nil
}

const billColumns = `id, contact_id, creditor_id, schedule_id, amount,
	currency, language, description, reference_number,
	status, billing_date, due_date, sent_at, paid_at, created_at`

// GetBill returns the bill with the given ID.
func (s *SQLiteStorage) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	return s.getBill(ctx, s.db, id)
}

func (s *SQLiteStorage) getBill(ctx context.Context, q dbtx, id string) (*model.Bill, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	bill, err := scanBill(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// GetBillsByStatus returns all bills in the given status, oldest billing
// date first.
func (s *SQLiteStorage) GetBillsByStatus(ctx context.Context, status model.BillStatus) ([]model.Bill, error) {
	return s.getBillsByStatus(ctx, s.db, status)
}

func (s *SQLiteStorage) getBillsByStatus(ctx context.Context, q dbtx, status model.BillStatus) ([]model.Bill, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrEmptyString, status)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE status = ? ORDER BY billing_date, id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bills []model.Bill
	for rows.Next() {
		bill, err := scanBill(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *bill)
	}
	return bills, rows.Err()
}

// MarkBillSent transitions a pending bill to sent and records the send time.
func (s *SQLiteStorage) MarkBillSent(ctx context.Context, id string, sentAt time.Time) error {
	return s.markBillSent(ctx, s.db, id, sentAt)
}

func (s *SQLiteStorage) markBillSent(ctx context.Context, q dbtx, id string, sentAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE bills SET status = ?, sent_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusSent), sentAt.UTC(), id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark bill sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: pending bill %s", ErrNotFound, id)
	}
	return nil
}

// MarkOverdueBills flips every bill whose due date has passed to overdue in a
// single statement. Paid and already-overdue bills are untouched, so the
// sweep is idempotent. Returns the number of bills transitioned.
func (s *SQLiteStorage) MarkOverdueBills(ctx context.Context, now time.Time) (int64, error) {
	return s.markOverdueBills(ctx, s.db, now)
}

func (s *SQLiteStorage) markOverdueBills(ctx context.Context, q dbtx, now time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE bills SET status = ?
		 WHERE due_date IS NOT NULL AND due_date <= ? AND status NOT IN (?, ?)`,
		string(model.StatusOverdue), now.UTC(),
		string(model.StatusOverdue), string(model.StatusPaid))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue bills: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// MatchPayment marks as paid every sent or overdue bill whose amount,
// currency, creditor IBAN, and reference number all equal the candidate
// payment's. Returns the number of bills marked.
func (s *SQLiteStorage) MatchPayment(ctx context.Context, match service.PaymentMatch) (int64, error) {
	return s.matchPayment(ctx, s.db, match)
}

func (s *SQLiteStorage) matchPayment(ctx context.Context, q dbtx, match service.PaymentMatch) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(match.Reference, "reference"); err != nil {
		return 0, err
	}
	if err := validateString(match.CreditorIBAN, "creditor IBAN"); err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE bills SET status = ?, paid_at = ?
		 WHERE amount = ? AND currency = ? AND reference_number = ?
		   AND status IN (?, ?)
		   AND creditor_id IN (SELECT id FROM creditors WHERE iban = ?)`,
		string(model.StatusPaid), match.PaidAt.UTC(),
		match.Amount.StringFixed(2), match.Currency, match.Reference,
		string(model.StatusSent), string(model.StatusOverdue),
		match.CreditorIBAN)
	if err != nil {
		return 0, fmt.Errorf("failed to match payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// scanBill reads one bill row via the given Scan function.
func scanBill(scan func(dest ...any) error) (*model.Bill, error) {
	var (
		bill       model.Bill
		scheduleID sql.NullInt64
		amount     string
		status     string
		dueDate    sql.NullTime
		sentAt     sql.NullTime
		paidAt     sql.NullTime
	)
	err := scan(&bill.ID, &bill.ContactID, &bill.CreditorID, &scheduleID,
		&amount, &bill.Currency, &bill.Language, &bill.Description,
		&bill.ReferenceNumber, &status, &bill.BillingDate, &dueDate,
		&sentAt, &paidAt, &bill.CreatedAt)
	if err != nil {
		return nil, err
	}

	bill.Amount, err = parseAmount(amount)
	if err != nil {
		return nil, err
	}
	bill.Status = model.BillStatus(status)
	bill.BillingDate = bill.BillingDate.UTC()
	if scheduleID.Valid {
		id := scheduleID.Int64
		bill.ScheduleID = &id
	}
	if dueDate.Valid {
		bill.DueDate = dueDate.Time.UTC()
	}
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		bill.SentAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		bill.PaidAt = &t
	}
	return &bill, nil
}

// addOneMonth returns the same day one calendar month later, clamped to the
// last day of the target month (Jan 31 becomes Feb 28).
func addOneMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return amount, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
