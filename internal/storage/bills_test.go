package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
)

func TestBills_FirstSaveDefaults(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	bill := &model.Bill{
		ContactID:   contact.ID,
		CreditorID:  creditor.ID,
		Amount:      decimal.RequireFromString("20.40"),
		Currency:    "CHF",
		Language:    "en",
		Description: "YouTube Premium 2025Q2",
		Status:      model.StatusPending,
		BillingDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateBill(ctx, bill))

	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), bill.DueDate)
	assert.Equal(t, "RF44YOUT20250401RICCARDOE", bill.ReferenceNumber)

	got, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.40", got.Amount.StringFixed(2))
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, "RF44YOUT20250401RICCARDOE", got.ReferenceNumber)
	assert.Nil(t, got.SentAt)
	assert.Nil(t, got.PaidAt)
}

func TestBills_DueDateClampsToMonthEnd(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	bill := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), bill.DueDate)
}

func TestBills_ExplicitDueDateAndReferencePreserved(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	bill := &model.Bill{
		ContactID:       contact.ID,
		CreditorID:      creditor.ID,
		Amount:          decimal.RequireFromString("20.40"),
		Currency:        "CHF",
		Language:        "en",
		Description:     "One-off",
		ReferenceNumber: "RF47ABC123",
		Status:          model.StatusPending,
		BillingDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         due,
	}
	require.NoError(t, store.CreateBill(ctx, bill))

	got, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, "RF47ABC123", got.ReferenceNumber)
}

func TestBills_MarkBillSent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	bill := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	sentAt := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.MarkBillSent(ctx, bill.ID, sentAt))

	got, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(sentAt))

	// Only pending bills can be marked sent.
	err = store.MarkBillSent(ctx, bill.ID, sentAt)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBills_GetBillsByStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	second := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	first := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	sent := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.MarkBillSent(ctx, sent.ID, time.Now()))

	pending, err := store.GetBillsByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestBills_MarkOverdueBills(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	// Due dates default to one month after the billing date.
	pastPending := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	pastSent := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.MarkBillSent(ctx, pastSent.ID, time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)))
	// Due exactly today: the sweep comparison is inclusive.
	dueToday := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	future := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, dueToday.DueDate.Equal(now))
	count, err := store.MarkOverdueBills(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, id := range []string{pastPending.ID, pastSent.ID, dueToday.ID} {
		got, getErr := store.GetBill(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, model.StatusOverdue, got.Status)
	}
	got, err := store.GetBill(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	// Sweeping again finds nothing new.
	count, err = store.MarkOverdueBills(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBills_MatchPayment(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	bill := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.MarkBillSent(ctx, bill.ID, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)))

	paidAt := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	match := service.PaymentMatch{
		PaidAt:       paidAt,
		CreditorIBAN: creditor.IBAN,
		Currency:     "CHF",
		Reference:    bill.ReferenceNumber,
		Amount:       decimal.RequireFromString("20.40"),
	}

	// Wrong currency never matches.
	wrongCurrency := match
	wrongCurrency.Currency = "EUR"
	count, err := store.MatchPayment(ctx, wrongCurrency)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Wrong amount never matches, even when numerically close.
	wrongAmount := match
	wrongAmount.Amount = decimal.RequireFromString("20.41")
	count, err = store.MatchPayment(ctx, wrongAmount)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.MatchPayment(ctx, match)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))

	// Paid is terminal: the same payment applied twice matches nothing.
	count, err = store.MatchPayment(ctx, match)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBills_MatchPaymentOverdue(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	bill := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.MarkBillSent(ctx, bill.ID, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)))

	_, err := store.MarkOverdueBills(ctx, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	count, err := store.MatchPayment(ctx, service.PaymentMatch{
		PaidAt:       time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		CreditorIBAN: creditor.IBAN,
		Currency:     "CHF",
		Reference:    bill.ReferenceNumber,
		Amount:       decimal.RequireFromString("20.40"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBills_MatchPaymentPendingExcluded(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	bill := seedBill(t, store, contact.ID, creditor.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	count, err := store.MatchPayment(ctx, service.PaymentMatch{
		PaidAt:       time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		CreditorIBAN: creditor.IBAN,
		Currency:     "CHF",
		Reference:    bill.ReferenceNumber,
		Amount:       decimal.RequireFromString("20.40"),
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}
