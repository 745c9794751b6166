// Package service defines the contracts between the billing engine, the
// persistence layer, and the delivery boundaries.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/billrun/internal/model"
)

// Batch outcome statuses reported by engine operations.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Contact operations
	CreateContact(ctx context.Context, contact *model.Contact) error
	GetContact(ctx context.Context, id int64) (*model.Contact, error)
	ListContacts(ctx context.Context) ([]model.Contact, error)
	DeleteContact(ctx context.Context, id int64) error

	// Creditor operations
	CreateCreditor(ctx context.Context, creditor *model.Creditor) error
	GetCreditor(ctx context.Context, id int64) (*model.Creditor, error)
	ListCreditors(ctx context.Context) ([]model.Creditor, error)
	DeleteCreditor(ctx context.Context, id int64) error

	// Schedule operations
	CreateSchedule(ctx context.Context, schedule *model.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*model.Schedule, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	GetDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error)
	UpdateScheduleNextBillingDate(ctx context.Context, id int64, next time.Time) error
	SetScheduleActive(ctx context.Context, id int64, active bool) error
	DeleteSchedule(ctx context.Context, id int64) error

	// Bill operations
	CreateBill(ctx context.Context, bill *model.Bill) error
	GetBill(ctx context.Context, id string) (*model.Bill, error)
	GetBillsByStatus(ctx context.Context, status model.BillStatus) ([]model.Bill, error)
	MarkBillSent(ctx context.Context, id string, sentAt time.Time) error
	MarkOverdueBills(ctx context.Context, now time.Time) (int64, error)
	MatchPayment(ctx context.Context, match PaymentMatch) (int64, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within the transaction
	Storage
}

// PaymentMatch is one candidate payment extracted from a bank statement row.
// A bill is marked paid only when amount, creditor IBAN, currency, and
// reference all match and its status is sent or overdue.
type PaymentMatch struct {
	PaidAt       time.Time
	CreditorIBAN string
	Currency     string
	Reference    string
	Amount       decimal.Decimal
}

// Attachment is a rendered payment document attached to an outgoing email.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Email is an outgoing message handed to the transport boundary.
type Email struct {
	From        string
	Subject     string
	Body        string
	To          []string
	CC          []string
	Attachments []Attachment
}

// Sender delivers email. Implementations are called outside status-mutating
// transactions so a slow transport never holds a database transaction open.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Renderer produces the payment document for a bill. Rendering internals are
// opaque to the engine.
type Renderer interface {
	Render(bill *model.Bill, creditor *model.Creditor, contact *model.Contact) (Attachment, error)
}

// GenerationResult reports a recurring-bill generation run.
type GenerationResult struct {
	Status         string
	Message        string
	Errors         []string
	GeneratedCount int
}

// SendResult reports a pending-bill sending run.
type SendResult struct {
	Status         string
	Message        string
	Errors         []string
	ProcessedCount int
}

// OverdueResult reports an overdue sweep.
type OverdueResult struct {
	Status       string
	Message      string
	UpdatedCount int64
}

// NotifyResult reports an overdue-notification run.
type NotifyResult struct {
	Status        string
	Message       string
	Errors        []string
	NotifiedCount int
}
