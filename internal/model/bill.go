package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the lifecycle state of a bill. Transitions only move
// forward: pending → sent → overdue → paid, with paid terminal.
type BillStatus string

// Bill lifecycle states.
const (
	StatusPending BillStatus = "pending"
	StatusSent    BillStatus = "sent"
	StatusOverdue BillStatus = "overdue"
	StatusPaid    BillStatus = "paid"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s BillStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

// Bill is a single concrete invoice. The (amount, currency, creditor,
// reference number) tuple is the natural key payment reconciliation matches
// against.
type Bill struct {
	BillingDate     time.Time
	DueDate         time.Time
	CreatedAt       time.Time
	SentAt          *time.Time
	PaidAt          *time.Time
	ScheduleID      *int64
	ID              string
	Currency        string
	Language        string
	Description     string
	ReferenceNumber string
	Status          BillStatus
	Amount          decimal.Decimal
	ContactID       int64
	CreditorID      int64
}

// Validate checks the bill's fields before its first save.
func (b *Bill) Validate() error {
	if b.ContactID == 0 {
		return validationErr("contact", "cannot be empty")
	}
	if b.CreditorID == 0 {
		return validationErr("creditor", "cannot be empty")
	}
	if !b.Amount.IsPositive() {
		return validationErr("amount", "must be positive")
	}
	if !Currencies[b.Currency] {
		return validationErr("currency", "is not an allowed currency")
	}
	if !Languages[b.Language] {
		return validationErr("language", "is not an allowed language")
	}
	if !b.Status.Valid() {
		return validationErr("status", "is not a valid bill status")
	}
	if b.BillingDate.IsZero() {
		return validationErr("billing_date", "cannot be empty")
	}
	return nil
}
