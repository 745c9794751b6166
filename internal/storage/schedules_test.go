package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billrun/internal/model"
)

func TestSchedules_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	schedule := &model.Schedule{
		ContactID:           contact.ID,
		CreditorID:          creditor.ID,
		Amount:              decimal.RequireFromString("99.90"),
		Currency:            "EUR",
		Language:            "de",
		Frequency:           "SemiMonthEnd",
		FrequencyParams:     map[string]any{"day_of_month": 20, "n": 2},
		DescriptionTemplate: "Hosting {{.BillingDate.ISO}}",
		StartDate:           start,
		IsActive:            true,
	}
	require.NoError(t, store.CreateSchedule(ctx, schedule))

	got, err := store.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.90", got.Amount.StringFixed(2))
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "SemiMonthEnd", got.Frequency)
	// JSON round-trips integers as float64; the offset parser accepts both.
	assert.Equal(t, map[string]any{"day_of_month": float64(20), "n": float64(2)}, got.FrequencyParams)
	assert.True(t, got.StartDate.Equal(start))
	// Unset next billing date defaults to the start date.
	assert.True(t, got.NextBillingDate.Equal(start))
	assert.True(t, got.IsActive)

	// Two semi-month steps from Jan 6: the 20th, then month end.
	next, err := got.NextBillingDateAfter()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), next)
}

func TestSchedules_InvalidFrequencyRejected(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	schedule := &model.Schedule{
		ContactID:           contact.ID,
		CreditorID:          creditor.ID,
		Amount:              decimal.RequireFromString("10.00"),
		Currency:            "CHF",
		Language:            "en",
		Frequency:           "Fortnightly",
		DescriptionTemplate: "x",
		StartDate:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	err := store.CreateSchedule(ctx, schedule)
	require.Error(t, err)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frequency", verr.Field)
}

func TestSchedules_GetDueSchedules(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	older := seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	newer := seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	// Due exactly now: the cursor comparison is inclusive.
	exact := seedSchedule(t, store, contact.ID, creditor.ID, now)
	seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))

	inactive := seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SetScheduleActive(ctx, inactive.ID, false))

	due, err := store.GetDueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, older.ID, due[0].ID)
	assert.Equal(t, newer.ID, due[1].ID)
	assert.Equal(t, exact.ID, due[2].ID)
}

func TestSchedules_NextBillingDateOnlyMovesForward(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	schedule := seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))

	next := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateScheduleNextBillingDate(ctx, schedule.ID, next))

	got, err := store.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, got.NextBillingDate.Equal(next))

	// Moving the cursor backwards is rejected.
	err = store.UpdateScheduleNextBillingDate(ctx, schedule.ID, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchedules_DeleteClearsBillReference(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	contact := seedContact(t, store, "Riccardo", "riccardo@example.com")
	creditor := seedCreditor(t, store, "Ledgerline", "billing@ledgerline.test", "CH9300762011623852957")
	schedule := seedSchedule(t, store, contact.ID, creditor.ID, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))

	bill := &model.Bill{
		ContactID:   contact.ID,
		CreditorID:  creditor.ID,
		ScheduleID:  &schedule.ID,
		Amount:      decimal.RequireFromString("20.40"),
		Currency:    "CHF",
		Language:    "en",
		Description: "Subscription 2025Q1",
		Status:      model.StatusPending,
		BillingDate: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateBill(ctx, bill))

	require.NoError(t, store.DeleteSchedule(ctx, schedule.ID))

	got, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ScheduleID)
	assert.Equal(t, "Subscription 2025Q1", got.Description)
}
