package payments

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
	"github.com/ledgerline/billrun/internal/storage"
)

const (
	testIBAN      = "CH801503791J674321901"
	testOtherIBAN = "CH9300762011623852957"
)

func createTestReconciler(t *testing.T) (*Reconciler, *storage.SQLiteStorage, *model.Contact) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	contact := &model.Contact{Name: "Riccardo", Email: "riccardo@example.com"}
	require.NoError(t, store.CreateContact(ctx, contact))

	return NewReconciler(store), store, contact
}

func seedCreditor(t *testing.T, store *storage.SQLiteStorage, email, iban string) *model.Creditor {
	t.Helper()
	creditor := &model.Creditor{
		Name:     "Ledgerline",
		City:     "Zurich",
		PostCode: "8000",
		Country:  "CH",
		Email:    email,
		IBAN:     iban,
	}
	require.NoError(t, store.CreateCreditor(context.Background(), creditor))
	return creditor
}

func seedReconcilableBill(t *testing.T, store *storage.SQLiteStorage, contactID, creditorID int64, amount, currency, ref string, status model.BillStatus) *model.Bill {
	t.Helper()
	bill := &model.Bill{
		ContactID:       contactID,
		CreditorID:      creditorID,
		Amount:          decimal.RequireFromString(amount),
		Currency:        currency,
		Language:        "en",
		Description:     "Subscription",
		ReferenceNumber: ref,
		Status:          status,
		BillingDate:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateBill(context.Background(), bill))
	return bill
}

func TestReconcile(t *testing.T) {
	reconciler, store, contact := createTestReconciler(t)
	ctx := context.Background()
	creditor := seedCreditor(t, store, "billing@ledgerline.test", testIBAN)
	otherCreditor := seedCreditor(t, store, "other@ledgerline.test", testOtherIBAN)

	sent := seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"20.40", "CHF", "RF14YOUT20250401RICCARDO", model.StatusSent)
	overdue := seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"75.95", "CHF", "RF36MOTO20250301MATTEOAB", model.StatusOverdue)

	// Negative controls: same reference but wrong amount, wrong creditor,
	// not yet sent, or already paid.
	wrongAmount := seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"100.00", "CHF", "RF14YOUT20250401RICCARDO", model.StatusOverdue)
	wrongCreditor := seedReconcilableBill(t, store, contact.ID, otherCreditor.ID,
		"20.40", "CHF", "RF14YOUT20250401RICCARDO", model.StatusOverdue)
	pending := seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"20.40", "CHF", "RF14YOUT20250401RICCARDO", model.StatusPending)
	paidAt := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	alreadyPaid := &model.Bill{
		ContactID:       contact.ID,
		CreditorID:      creditor.ID,
		Amount:          decimal.RequireFromString("20.40"),
		Currency:        "CHF",
		Language:        "en",
		Description:     "Subscription",
		ReferenceNumber: "RF14YOUT20250401RICCARDO",
		Status:          model.StatusPaid,
		BillingDate:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PaidAt:          &paidAt,
	}
	require.NoError(t, store.CreateBill(ctx, alreadyPaid))

	rows := []string{
		`2025-04-16;;2025-04-16;2025-04-16;CHF;;20.40;;;2025106PH0001302;Accredito Creditor Reference;` + testIBAN + `;"Spese: Accredito referenza creditore; No di transazioni: 2025106PH0001302";;`,
		`;;;;CHF;;;20.40;;2025106PH0001302;SCOR: RF14 YOUT 2025 0401 RICC ARDO;` + testIBAN + `;;;`,
		`2025-04-17;;2025-04-17;2025-04-17;CHF;;75.95;;;2025107PH0001400;Accredito Creditor Reference;` + testIBAN + `;;;`,
		`;;;;CHF;;;75.95;;2025107PH0001400;SCOR: RF36 MOTO 2025 0301 MATT EOAB;` + testIBAN + `;;;`,
		`;;;;CHF;;;20.40;;2025108PH0001500;SCOR: NOMATCHINGREF0000000000000000000000000000000000;` + testIBAN + `;;;`,
	}

	// Nine more outstanding bills, each matched by its own credited row, for
	// eleven matches in total.
	var batch []*model.Bill
	for i := 0; i < 9; i++ {
		amount := fmt.Sprintf("%d.50", 30+i)
		ref := fmt.Sprintf("RF%02dHOST202504%02dCLIENT%d", 10+i, i+1, i)
		batch = append(batch, seedReconcilableBill(t, store, contact.ID, creditor.ID,
			amount, "CHF", ref, model.StatusSent))
		rows = append(rows, fmt.Sprintf(`2025-04-18;;2025-04-18;2025-04-18;CHF;;;%s;;2025108PH00016%02d;SCOR: %s;%s;;;`,
			amount, i, ref, testIBAN))
	}

	result, err := reconciler.Reconcile(ctx, strings.NewReader(statementWithRows(rows...)))
	require.NoError(t, err)
	assert.Equal(t, service.StatusSuccess, result.Status)
	assert.Equal(t, int64(11), result.PaidCount)
	assert.Empty(t, result.Errors)

	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	gotSent, err := store.GetBill(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, gotSent.Status)
	require.NotNil(t, gotSent.PaidAt)
	assert.True(t, gotSent.PaidAt.Equal(time.Date(2025, 4, 16, 0, 0, 0, 0, zurich)))

	gotOverdue, err := store.GetBill(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, gotOverdue.Status)
	require.NotNil(t, gotOverdue.PaidAt)
	assert.True(t, gotOverdue.PaidAt.Equal(time.Date(2025, 4, 17, 0, 0, 0, 0, zurich)))

	for _, bill := range batch {
		got, getErr := store.GetBill(ctx, bill.ID)
		require.NoError(t, getErr)
		assert.Equal(t, model.StatusPaid, got.Status, bill.ReferenceNumber)
		require.NotNil(t, got.PaidAt)
		assert.True(t, got.PaidAt.Equal(time.Date(2025, 4, 18, 0, 0, 0, 0, zurich)))
	}

	for name, bill := range map[string]*model.Bill{
		"wrong amount":   wrongAmount,
		"wrong creditor": wrongCreditor,
		"pending":        pending,
	} {
		got, getErr := store.GetBill(ctx, bill.ID)
		require.NoError(t, getErr)
		assert.NotEqual(t, model.StatusPaid, got.Status, name)
	}

	gotPaid, err := store.GetBill(ctx, alreadyPaid.ID)
	require.NoError(t, err)
	require.NotNil(t, gotPaid.PaidAt)
	assert.True(t, gotPaid.PaidAt.Equal(paidAt), "existing paid_at must not change")
}

func TestReconcile_Idempotent(t *testing.T) {
	reconciler, store, contact := createTestReconciler(t)
	ctx := context.Background()
	creditor := seedCreditor(t, store, "billing@ledgerline.test", testIBAN)
	seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"20.40", "CHF", "RF14YOUT20250401RICCARDO", model.StatusSent)

	statement := statementWithRows(
		`2025-04-16;;2025-04-16;2025-04-16;CHF;;;20.40;;2025106PH0001302;SCOR: RF14 YOUT 2025 0401 RICC ARDO;` + testIBAN + `;;;`,
	)

	result, err := reconciler.Reconcile(ctx, strings.NewReader(statement))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.PaidCount)

	// Paid is terminal: replaying the statement matches nothing.
	result, err = reconciler.Reconcile(ctx, strings.NewReader(statement))
	require.NoError(t, err)
	assert.Zero(t, result.PaidCount)
	assert.Equal(t, service.StatusSuccess, result.Status)
}

func TestReconcile_NoReferenceRows(t *testing.T) {
	reconciler, _, _ := createTestReconciler(t)

	statement := statementWithRows(
		`2025-04-16;;2025-04-16;2025-04-16;CHF;50.00;;;;2025106PH0001302;Addebito carta;;;;`,
	)
	result, err := reconciler.Reconcile(context.Background(), strings.NewReader(statement))
	require.NoError(t, err)
	assert.Equal(t, service.StatusSuccess, result.Status)
	assert.Zero(t, result.PaidCount)
}

func TestReconcile_BadRowReported(t *testing.T) {
	reconciler, store, contact := createTestReconciler(t)
	ctx := context.Background()
	creditor := seedCreditor(t, store, "billing@ledgerline.test", testIBAN)
	seedReconcilableBill(t, store, contact.ID, creditor.ID,
		"20.40", "CHF", "RF14YOUT20250401RICCARDO", model.StatusSent)

	statement := statementWithRows(
		`2025-04-16;;2025-04-16;2025-04-16;CHF;;;not-a-number;;1;SCOR: RF00 BAD;`+testIBAN+`;;;`,
		`2025-04-16;;2025-04-16;2025-04-16;CHF;;;20.40;;2;SCOR: RF14 YOUT 2025 0401 RICC ARDO;`+testIBAN+`;;;`,
	)

	result, err := reconciler.Reconcile(ctx, strings.NewReader(statement))
	require.NoError(t, err)
	assert.Equal(t, service.StatusPartialSuccess, result.Status)
	assert.Equal(t, int64(1), result.PaidCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid amount")
}

func TestReconcile_UnreadableStatement(t *testing.T) {
	reconciler, _, _ := createTestReconciler(t)

	_, err := reconciler.Reconcile(context.Background(), strings.NewReader("truncated"))
	assert.Error(t, err)
}
