package posting

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
	"github.com/rumor-ml/commons.systems/walletparse/internal/resolve"
	"github.com/rumor-ml/commons.systems/walletparse/internal/store"
	"github.com/rumor-ml/commons.systems/walletparse/internal/store/storetest"
)

var (
	testCreatedAt = time.Date(2025, 10, 28, 18, 39, 0, 0, time.UTC)
	testNow       = time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)
)

func testEngine(t *testing.T) (*Engine, *store.Store, *sql.DB) {
	t.Helper()

	st, db := storetest.Open(t)
	catalog, err := resolve.NewCatalog([]domain.Account{
		{ID: "acc-wallet", Name: "PhonePe Wallet", Identifier: "9876543210"},
		{ID: "acc-sbi", Name: "PSG SBI AC", MatchName: "PSG SBI"},
	}, "acc-wallet")
	require.NoError(t, err)

	opts := Options{Currency: "INR", Notes: "Imported via statement automation", Provider: "PhonePe"}
	return New(st, resolve.New(catalog), opts, zap.NewNop(), func() time.Time { return testNow }), st, db
}

func transferRecord(t *testing.T) *domain.ParsedRecord {
	t.Helper()
	rec, err := domain.NewParsedRecord("2025-10-28", "Paid to PSG SBI AC", decimal.RequireFromString("500.00"), domain.DirectionDebit)
	require.NoError(t, err)
	rec.TransactionID = "T123"
	rec.UTR = "UTR456"
	return rec
}

func self() domain.Account {
	return domain.Account{ID: "acc-wallet", Name: "PhonePe Wallet"}
}

func TestTransfer_Created(t *testing.T) {
	e, _, db := testEngine(t)
	ctx := context.Background()

	res := e.Transfer(ctx, transferRecord(t), self(), testCreatedAt)
	require.Equal(t, StatusCreated, res.Status, "reason: %s", res.Reason)
	require.NotEmpty(t, res.OutflowTransactionID)
	require.NotEmpty(t, res.InflowTransactionID)

	// The outflow leg removes funds from self (positive), the inflow leg adds
	// the exact negation on the target account.
	out := storetest.EntryAmount(t, db, res.OutflowTransactionID)
	in := storetest.EntryAmount(t, db, res.InflowTransactionID)
	assert.True(t, out.Equal(decimal.RequireFromString("500.0000")), "outflow = %s", out)
	assert.True(t, in.Equal(out.Neg()), "inflow %s is not the exact negation of outflow %s", in, out)

	var outAccount, inAccount string
	require.NoError(t, db.QueryRow(`SELECT account_id FROM entries WHERE entryable_id = $1`, res.OutflowTransactionID).Scan(&outAccount))
	require.NoError(t, db.QueryRow(`SELECT account_id FROM entries WHERE entryable_id = $1`, res.InflowTransactionID).Scan(&inAccount))
	assert.Equal(t, "acc-wallet", outAccount)
	assert.Equal(t, "acc-sbi", inAccount)

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM transfers WHERE outflow_transaction_id = $1`, res.OutflowTransactionID).Scan(&status))
	assert.Equal(t, "confirmed", status)
}

func TestTransfer_CreditSwapsSides(t *testing.T) {
	e, _, db := testEngine(t)
	ctx := context.Background()

	rec := transferRecord(t)
	rec.Payee = "Received from PSG SBI AC"
	rec.Direction = domain.DirectionCredit

	res := e.Transfer(ctx, rec, self(), testCreatedAt)
	require.Equal(t, StatusCreated, res.Status, "reason: %s", res.Reason)

	// Credit means funds arrived at self: the outflow leg lives on the target
	// account and the negative inflow leg on self.
	var outAccount, inAccount string
	require.NoError(t, db.QueryRow(`SELECT account_id FROM entries WHERE entryable_id = $1`, res.OutflowTransactionID).Scan(&outAccount))
	require.NoError(t, db.QueryRow(`SELECT account_id FROM entries WHERE entryable_id = $1`, res.InflowTransactionID).Scan(&inAccount))
	assert.Equal(t, "acc-sbi", outAccount)
	assert.Equal(t, "acc-wallet", inAccount)
}

func TestTransfer_SkipWhenNoTarget(t *testing.T) {
	e, _, _ := testEngine(t)

	rec := transferRecord(t)
	rec.Payee = "Coffee House"

	res := e.Transfer(context.Background(), rec, self(), testCreatedAt)
	assert.Equal(t, StatusSkip, res.Status)
}

func TestTransfer_SkipWhenTargetIsSelf(t *testing.T) {
	e, _, _ := testEngine(t)

	rec := transferRecord(t)
	rec.Payee = "PhonePe Wallet top-up"

	res := e.Transfer(context.Background(), rec, self(), testCreatedAt)
	assert.Equal(t, StatusSkip, res.Status)
}

func TestTransfer_ExistsOnSecondRun(t *testing.T) {
	e, _, db := testEngine(t)
	ctx := context.Background()

	first := e.Transfer(ctx, transferRecord(t), self(), testCreatedAt)
	require.Equal(t, StatusCreated, first.Status, "reason: %s", first.Reason)

	second := e.Transfer(ctx, transferRecord(t), self(), testCreatedAt)
	require.Equal(t, StatusExists, second.Status)
	assert.Equal(t, first.OutflowTransactionID, second.OutflowTransactionID)
	assert.Equal(t, first.InflowTransactionID, second.InflowTransactionID)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transfers`).Scan(&n))
	assert.Equal(t, 1, n, "a repeated record must not produce a second transfer")
}

func TestTransfer_InflowSourceSuffix(t *testing.T) {
	e, st, _ := testEngine(t)
	ctx := context.Background()

	res := e.Transfer(ctx, transferRecord(t), self(), testCreatedAt)
	require.Equal(t, StatusCreated, res.Status, "reason: %s", res.Reason)

	// Both legs are visible to the secondary duplicate key.
	exists, err := st.EntryExistsByAny(ctx, "T123_IN", "")
	require.NoError(t, err)
	assert.True(t, exists, "inflow leg must carry the derived source id")
}

func TestStandalone_SignConvention(t *testing.T) {
	e, _, db := testEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		dir  domain.Direction
		want string
	}{
		{"debit is positive", domain.DirectionDebit, "100.0000"},
		{"credit is negative", domain.DirectionCredit, "-100.0000"},
		{"unknown treated as debit", domain.DirectionUnknown, "100.0000"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := domain.NewParsedRecord("2025-10-28", "Coffee House", decimal.RequireFromString("100.00"), tt.dir)
			require.NoError(t, err)
			rec.TransactionID = fmt.Sprintf("T90%d", i)

			require.NoError(t, e.Standalone(ctx, rec, self(), testCreatedAt))

			var amount string
			require.NoError(t, db.QueryRow(`SELECT amount FROM entries WHERE source = $1`, rec.TransactionID).Scan(&amount))
			assert.Equal(t, tt.want, amount)
		})
	}
}

func TestStandalone_ProviderFallbackName(t *testing.T) {
	e, _, db := testEngine(t)
	ctx := context.Background()

	rec := &domain.ParsedRecord{
		Date:          "2025-10-28",
		Time:          "00:00",
		Payee:         "",
		TransactionID: "T910",
		Amount:        decimal.RequireFromString("10"),
		Direction:     domain.DirectionDebit,
	}

	require.NoError(t, e.Standalone(ctx, rec, self(), testCreatedAt))

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM entries WHERE source = 'T910'`).Scan(&name))
	assert.Equal(t, "PhonePe", name)
}

func TestStandalone_CategoryInheritance(t *testing.T) {
	e, st, db := testEngine(t)
	ctx := context.Background()

	// Seed a categorized historical entry with the same payee.
	seed := domain.Transaction{ID: "txn-seed", CreatedAt: testCreatedAt, UpdatedAt: testCreatedAt, Kind: domain.KindStandard, CategoryID: "cat-dining"}
	seedEntry := domain.LedgerEntry{
		ID: "ent-seed", AccountID: "acc-wallet", EntryableType: "Transaction", EntryableID: "txn-seed",
		Amount: decimal.RequireFromString("10"), Currency: "INR", Date: "2025-01-01", Name: "Coffee House",
		CreatedAt: testCreatedAt, UpdatedAt: testCreatedAt,
	}
	require.NoError(t, st.PostStandalone(ctx, seed, seedEntry))

	rec, err := domain.NewParsedRecord("2025-10-28", "Coffee House", decimal.RequireFromString("42.00"), domain.DirectionDebit)
	require.NoError(t, err)
	rec.TransactionID = "T901"

	require.NoError(t, e.Standalone(ctx, rec, self(), testCreatedAt))

	var categoryID string
	require.NoError(t, db.QueryRow(`SELECT t.category_id FROM transactions t JOIN entries e ON e.entryable_id = t.id WHERE e.source = 'T901'`).Scan(&categoryID))
	assert.Equal(t, "cat-dining", categoryID)
}

func TestInflowSource(t *testing.T) {
	if got := inflowSource("T123"); got != "T123_IN" {
		t.Errorf("inflowSource(T123) = %q, want T123_IN", got)
	}
	if got := inflowSource(""); got != "" {
		t.Errorf("inflowSource(\"\") = %q, want empty", got)
	}
}
