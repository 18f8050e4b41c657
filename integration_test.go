package walletparse_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/config"
	"github.com/rumor-ml/commons.systems/walletparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/walletparse/internal/output"
	"github.com/rumor-ml/commons.systems/walletparse/internal/pipeline"
	"github.com/rumor-ml/commons.systems/walletparse/internal/posting"
	"github.com/rumor-ml/commons.systems/walletparse/internal/resolve"
	"github.com/rumor-ml/commons.systems/walletparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/walletparse/internal/store/storetest"
)

const testConfigYAML = `
store:
  driver: sqlite
  dsn: "file:ignored.db"
currency: INR
provider: PhonePe
default_account: acc-wallet
accounts:
  - id: acc-wallet
    name: PhonePe Wallet
    identifier: "9876543210"
  - id: acc-sbi
    name: PSG SBI AC
    match_name: PSG SBI
`

const testStatement = `PhonePe Transaction Statement
Mobile Number: 9876543210
Oct 28, 2025 - Nov 27, 2025
Date Transaction Details Type Amount

Oct 28, 2025
6:39 PM
Paid to PSG SBI AC
Transaction ID: T123
UTR No: 111222333
INR 500.00
Debit
Nov 1, 2025
7:00 AM
Paid to Coffee House
Transaction ID: T201
UTR No: 444555666
INR 100.00
Debit
`

// buildPipeline wires the stages the way cmd/walletparse does, over a
// throwaway sqlite store.
func buildPipeline(t *testing.T, opts pipeline.Options) (*pipeline.Pipeline, func(query string) int) {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfigYAML))
	require.NoError(t, err)

	st, db := storetest.Open(t)
	catalog, err := resolve.NewCatalog(cfg.CatalogAccounts(), cfg.DefaultAccount)
	require.NoError(t, err)

	log := zap.NewNop()
	resolver := resolve.New(catalog)
	engine := posting.New(st, resolver, posting.Options{
		Currency: cfg.Currency,
		Notes:    cfg.Notes,
		Provider: cfg.Provider,
	}, log, time.Now)

	count := func(query string) int {
		var n int
		require.NoError(t, db.QueryRow(query).Scan(&n))
		return n
	}
	return pipeline.New(resolver, dedup.New(st, log), engine, opts, log), count
}

func scanStatements(t *testing.T) []scanner.Statement {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "statement.txt"), []byte(testStatement), 0o644))

	statements, err := scanner.New(dir).Scan()
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Equal(t, "9876543210", statements[0].LinkedID)
	return statements
}

func TestEndToEnd_ImportAndReimport(t *testing.T) {
	p, count := buildPipeline(t, pipeline.Options{})
	ctx := context.Background()
	statements := scanStatements(t)

	stats, _ := p.Run(ctx, statements)

	// One transfer to the tracked SBI account, one ordinary expense.
	assert.Equal(t, 1, stats.TransfersCreated)
	assert.Equal(t, 1, stats.EntriesCreated)
	assert.Equal(t, 3, stats.Inserted())
	assert.Equal(t, 2, count(`SELECT COUNT(*) FROM entries WHERE account_id = 'acc-wallet'`))
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM entries WHERE account_id = 'acc-sbi'`))
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM transfers`))

	// Re-importing the identical statement is a no-op.
	stats, _ = p.Run(ctx, statements)
	assert.Zero(t, stats.Inserted())
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 3, count(`SELECT COUNT(*) FROM entries`))
}

func TestEndToEnd_DryRunCSV(t *testing.T) {
	p, count := buildPipeline(t, pipeline.Options{DryRun: true})
	statements := scanStatements(t)

	stats, rows := p.Run(context.Background(), statements)
	require.Len(t, rows, 2)
	assert.Zero(t, stats.Inserted())
	assert.Zero(t, count(`SELECT COUNT(*) FROM entries`), "dry run must not touch the store")

	csvPath := filepath.Join(t.TempDir(), "dry-run.csv")
	require.NoError(t, output.WriteCSVFile(csvPath, rows))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "2025-10-28,18:39,PSG SBI AC,500.0000,debit,T123,111222333,acc-wallet")
	assert.Contains(t, text, "2025-11-01,07:00,Coffee House,100.0000,debit,T201,444555666,acc-wallet")
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(text), "\n")), "header plus two rows")
}

func TestEndToEnd_MinDateCutoff(t *testing.T) {
	p, count := buildPipeline(t, pipeline.Options{
		MinDate: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	})

	stats, _ := p.Run(context.Background(), scanStatements(t))

	assert.Equal(t, 1, stats.BelowMinDate)
	assert.Zero(t, stats.TransfersCreated, "the Oct 28 transfer is below the cutoff")
	assert.Equal(t, 1, stats.EntriesCreated)
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM entries`))
}
