package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/billrun/internal/service"
)

// referenceMarker tags statement rows that carry a structured creditor
// reference.
const referenceMarker = "SCOR:"

// statementTimezone is the bank's local timezone; operation dates in the
// export carry no offset of their own.
const statementTimezone = "Europe/Zurich"

// Result reports a reconciliation run.
type Result struct {
	Status    string
	Message   string
	Errors    []string
	PaidCount int64
}

// Reconciler marks bills paid from bank statement exports.
type Reconciler struct {
	storage service.Storage
}

// NewReconciler creates a reconciler backed by the given storage.
func NewReconciler(storage service.Storage) *Reconciler {
	return &Reconciler{storage: storage}
}

// Reconcile parses a statement export and marks every matching sent or
// overdue bill as paid. A row matches a bill when amount, currency,
// counterparty IBAN, and extracted reference are all equal. Rows without a
// structured reference are skipped; rows that fail to parse are reported
// without aborting the run.
func (r *Reconciler) Reconcile(ctx context.Context, statement io.Reader) (*Result, error) {
	records, err := ParseStatement(statement)
	if err != nil {
		return nil, err
	}

	zurich, err := time.LoadLocation(statementTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	result := &Result{}
	for i, record := range records {
		if !strings.Contains(record.Description, referenceMarker) {
			continue
		}

		match, err := r.buildMatch(record, zurich)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		count, err := r.storage.MatchPayment(ctx, match)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if count == 0 {
			slog.Debug("No bill matched payment",
				"reference", match.Reference,
				"amount", match.Amount.StringFixed(2))
			continue
		}
		result.PaidCount += count
	}

	if len(result.Errors) > 0 {
		result.Status = service.StatusPartialSuccess
	} else {
		result.Status = service.StatusSuccess
	}
	result.Message = fmt.Sprintf("Marked %d bills paid", result.PaidCount)

	slog.Info("Reconciliation complete",
		"paid", result.PaidCount,
		"failed_rows", len(result.Errors))
	return result, nil
}

func (r *Reconciler) buildMatch(record Record, zurich *time.Location) (service.PaymentMatch, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(record.Amount))
	if err != nil {
		return service.PaymentMatch{}, fmt.Errorf("invalid amount %q: %w", record.Amount, err)
	}
	paidAt, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(record.OperationDate), zurich)
	if err != nil {
		return service.PaymentMatch{}, fmt.Errorf("invalid operation date %q: %w", record.OperationDate, err)
	}

	return service.PaymentMatch{
		PaidAt:       paidAt,
		CreditorIBAN: strings.TrimSpace(record.CounterpartyIBAN),
		Currency:     strings.TrimSpace(record.Currency),
		Reference:    ExtractReference(record.Description),
		Amount:       amount,
	}, nil
}

// ExtractReference returns the structured reference from a statement
// description: everything after the first colon, with spaces removed. The
// bank prints references in grouped blocks of four characters.
func ExtractReference(description string) string {
	_, rest, found := strings.Cut(description, ":")
	if !found {
		return ""
	}
	return strings.ReplaceAll(rest, " ", "")
}
