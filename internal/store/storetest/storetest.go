// Package storetest opens a throwaway sqlite-backed Store carrying the same
// tables the production Postgres store has. Schema administration is outside
// the importer; this mirror exists only so tests exercise real SQL.
package storetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/walletparse/internal/store"
)

const schema = `
CREATE TABLE transactions (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	kind TEXT NOT NULL,
	category_id TEXT,
	merchant_id TEXT,
	external_id TEXT,
	metadata TEXT
);
CREATE TABLE entries (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	entryable_type TEXT NOT NULL,
	entryable_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	date TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	notes TEXT,
	external_id TEXT,
	source TEXT,
	metadata TEXT
);
CREATE TABLE transfers (
	outflow_transaction_id TEXT NOT NULL,
	inflow_transaction_id TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE accounts (
	id TEXT PRIMARY KEY,
	metadata TEXT
);
`

// Open returns a Store over a fresh file-backed sqlite database that is
// removed with the test's temp directory. The raw handle is returned too so
// tests can run assertion queries directly.
func Open(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "walletparse.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return store.NewWithDB(db, "sqlite"), db
}

// EntryAmount reads the signed amount of the entry posted for one
// transaction id.
func EntryAmount(t *testing.T, db *sql.DB, transactionID string) decimal.Decimal {
	t.Helper()

	var amt string
	err := db.QueryRow(`SELECT amount FROM entries WHERE entryable_type = 'Transaction' AND entryable_id = $1`, transactionID).Scan(&amt)
	if err != nil {
		t.Fatalf("failed to read entry amount for transaction %s: %v", transactionID, err)
	}
	return decimal.RequireFromString(amt)
}
