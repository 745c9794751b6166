// Package engine orchestrates recurring bill generation, delivery, and the
// overdue lifecycle.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
)

// BillingEngine drives the billing pipeline against the persistence layer
// and the delivery boundaries.
type BillingEngine struct {
	storage  service.Storage
	sender   service.Sender
	renderer service.Renderer
	from     string
	progress io.Writer
}

// Config holds configuration options for the billing engine.
type Config struct {
	// FromAddress is the sender address on outgoing bill emails.
	FromAddress string
	// ProgressWriter receives the progress bar during send runs.
	ProgressWriter io.Writer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FromAddress:    "billing@localhost",
		ProgressWriter: os.Stdout,
	}
}

// New creates a new billing engine with the given dependencies.
func New(storage service.Storage, sender service.Sender, renderer service.Renderer) *BillingEngine {
	return NewWithConfig(storage, sender, renderer, DefaultConfig())
}

// NewWithConfig creates a new billing engine with custom configuration.
func NewWithConfig(storage service.Storage, sender service.Sender, renderer service.Renderer, config Config) *BillingEngine {
	if config.ProgressWriter == nil {
		config.ProgressWriter = io.Discard
	}
	return &BillingEngine{
		storage:  storage,
		sender:   sender,
		renderer: renderer,
		from:     config.FromAddress,
		progress: config.ProgressWriter,
	}
}

// GenerateRecurringBills creates one bill for every active schedule whose
// next billing date is at or before now, oldest first. Each schedule is
// processed in its own transaction: the bill insert and the cursor advance
// commit together or not at all, so one broken schedule never blocks the
// rest of the run.
func (e *BillingEngine) GenerateRecurringBills(ctx context.Context, now time.Time) (*service.GenerationResult, error) {
	slog.Info("Starting bill generation", "now", now.Format("2006-01-02"))

	schedules, err := e.storage.GetDueSchedules(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due schedules: %w", err)
	}

	if len(schedules) == 0 {
		slog.Info("No schedules due")
		return &service.GenerationResult{
			Status:  service.StatusSuccess,
			Message: "No bills were due for generation",
		}, nil
	}

	result := &service.GenerationResult{}
	for i := range schedules {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		schedule := &schedules[i]
		if err := e.generateForSchedule(ctx, schedule); err != nil {
			slog.Error("Failed to generate bill",
				"schedule_id", schedule.ID,
				"error", err)
			result.Errors = append(result.Errors,
				fmt.Sprintf("schedule %d (%s): %v", schedule.ID, truncate(schedule.DescriptionTemplate, 40), err))
			continue
		}
		result.GeneratedCount++
	}

	if len(result.Errors) > 0 {
		result.Status = service.StatusPartialSuccess
		result.Message = fmt.Sprintf("Generated %d of %d bills", result.GeneratedCount, len(schedules))
	} else {
		result.Status = service.StatusSuccess
		result.Message = fmt.Sprintf("Generated %d bills", result.GeneratedCount)
	}

	slog.Info("Bill generation complete",
		"generated", result.GeneratedCount,
		"failed", len(result.Errors))
	return result, nil
}

// generateForSchedule creates the schedule's next bill and advances its
// billing cursor atomically.
func (e *BillingEngine) generateForSchedule(ctx context.Context, schedule *model.Schedule) error {
	bill, err := schedule.GenerateBill()
	if err != nil {
		return err
	}
	next, err := schedule.NextBillingDateAfter()
	if err != nil {
		return err
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CreateBill(ctx, bill); err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	if err := tx.UpdateScheduleNextBillingDate(ctx, schedule.ID, next); err != nil {
		return fmt.Errorf("failed to advance billing date: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	schedule.NextBillingDate = next
	slog.Debug("Generated bill",
		"schedule_id", schedule.ID,
		"bill_id", bill.ID,
		"reference", bill.ReferenceNumber,
		"next_billing_date", next.Format("2006-01-02"))
	return nil
}

// SendPendingBills renders and emails every pending bill, then marks it
// sent. Rendering and delivery happen outside any transaction; only the
// status flip touches the database, so a slow mail server never holds a
// transaction open.
func (e *BillingEngine) SendPendingBills(ctx context.Context, now time.Time) (*service.SendResult, error) {
	bills, err := e.storage.GetBillsByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending bills: %w", err)
	}

	if len(bills) == 0 {
		return &service.SendResult{
			Status:  service.StatusSuccess,
			Message: "No pending bills to send",
		}, nil
	}

	bar := e.newProgressBar(len(bills), "Sending bills...")
	result := &service.SendResult{}
	for i := range bills {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bill := &bills[i]
		if err := e.sendBill(ctx, bill, now); err != nil {
			slog.Error("Failed to send bill",
				"bill_id", bill.ID,
				"error", err)
			result.Errors = append(result.Errors,
				fmt.Sprintf("bill %s (%s): %v", bill.ID, truncate(bill.Description, 40), err))
		} else {
			result.ProcessedCount++
		}
		_ = bar.Add(1)
	}

	if len(result.Errors) > 0 {
		result.Status = service.StatusPartialSuccess
		result.Message = fmt.Sprintf("Sent %d of %d bills", result.ProcessedCount, len(bills))
	} else {
		result.Status = service.StatusSuccess
		result.Message = fmt.Sprintf("Sent %d bills", result.ProcessedCount)
	}
	return result, nil
}

func (e *BillingEngine) sendBill(ctx context.Context, bill *model.Bill, now time.Time) error {
	contact, err := e.storage.GetContact(ctx, bill.ContactID)
	if err != nil {
		return fmt.Errorf("failed to get contact: %w", err)
	}
	creditor, err := e.storage.GetCreditor(ctx, bill.CreditorID)
	if err != nil {
		return fmt.Errorf("failed to get creditor: %w", err)
	}

	attachment, err := e.renderer.Render(bill, creditor, contact)
	if err != nil {
		return fmt.Errorf("failed to render bill: %w", err)
	}

	email := composeBillEmail(e.from, bill, creditor, contact)
	email.Attachments = []service.Attachment{attachment}
	if err := e.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if err := e.storage.MarkBillSent(ctx, bill.ID, now); err != nil {
		return fmt.Errorf("failed to mark bill sent: %w", err)
	}
	return nil
}

// MarkOverdueBills flips every bill past its due date to overdue in a
// single sweep.
func (e *BillingEngine) MarkOverdueBills(ctx context.Context, now time.Time) (*service.OverdueResult, error) {
	count, err := e.storage.MarkOverdueBills(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark overdue bills: %w", err)
	}

	slog.Info("Overdue sweep complete", "updated", count)
	return &service.OverdueResult{
		Status:       service.StatusSuccess,
		Message:      fmt.Sprintf("Marked %d bills overdue", count),
		UpdatedCount: count,
	}, nil
}

// NotifyOverdueBills emails a payment reminder for every overdue bill. Bill
// status is not changed; reminders can be sent repeatedly.
func (e *BillingEngine) NotifyOverdueBills(ctx context.Context) (*service.NotifyResult, error) {
	bills, err := e.storage.GetBillsByStatus(ctx, model.StatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue bills: %w", err)
	}

	if len(bills) == 0 {
		return &service.NotifyResult{
			Status:  service.StatusSuccess,
			Message: "No overdue bills to notify",
		}, nil
	}

	result := &service.NotifyResult{}
	for i := range bills {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bill := &bills[i]
		if err := e.notifyOverdue(ctx, bill); err != nil {
			slog.Error("Failed to send overdue reminder",
				"bill_id", bill.ID,
				"error", err)
			result.Errors = append(result.Errors,
				fmt.Sprintf("bill %s (%s): %v", bill.ID, truncate(bill.Description, 40), err))
		} else {
			result.NotifiedCount++
		}
	}

	if len(result.Errors) > 0 {
		result.Status = service.StatusPartialSuccess
		result.Message = fmt.Sprintf("Notified %d of %d overdue bills", result.NotifiedCount, len(bills))
	} else {
		result.Status = service.StatusSuccess
		result.Message = fmt.Sprintf("Notified %d overdue bills", result.NotifiedCount)
	}
	return result, nil
}

func (e *BillingEngine) notifyOverdue(ctx context.Context, bill *model.Bill) error {
	contact, err := e.storage.GetContact(ctx, bill.ContactID)
	if err != nil {
		return fmt.Errorf("failed to get contact: %w", err)
	}
	creditor, err := e.storage.GetCreditor(ctx, bill.CreditorID)
	if err != nil {
		return fmt.Errorf("failed to get creditor: %w", err)
	}

	email := composeReminderEmail(e.from, bill, creditor, contact)
	if err := e.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *BillingEngine) newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(e.progress)
		}),
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
