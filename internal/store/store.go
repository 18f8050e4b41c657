// Package store is the persistent store boundary. The importer only inserts
// into transactions, entries and transfers, and only reads accounts, entries
// and transactions for resolution, category inheritance and duplicate checks.
// It never updates or deletes existing rows.
//
// SQL stays inside the portable subset accepted by both registered drivers
// (lib/pq for the production Postgres store, modernc.org/sqlite for tests and
// local runs): $N placeholders, no server-side time functions, timestamps
// always passed as parameters.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// Store wraps the SQL connection used for one import run.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects and immediately verifies the connection. A store that cannot
// be reached is fatal at startup, before any record is processed.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w\n\nCheck that the database is reachable and the DSN is correct (store.dsn or WALLETPARSE_DSN)", driver, err)
	}

	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing connection (used by tests).
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears any broken connection state after a failed query so the run
// can continue with the next record.
func (s *Store) Reset(ctx context.Context) {
	// database/sql retires broken connections on its own; the ping just
	// forces a fresh healthy one before the next statement.
	_ = s.db.PingContext(ctx)
}

// EntryExistsByKey reports whether an entry exists for the full primary
// idempotency key (account, source, external id).
func (s *Store) EntryExistsByKey(ctx context.Context, accountID, source, externalID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM entries WHERE account_id = $1 AND source = $2 AND external_id = $3)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, accountID, source, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("duplicate check by key failed: %w", err)
	}
	return exists, nil
}

// EntryExistsByAny reports whether any entry's source or external id matches
// either identifier. This is the looser secondary key used when the primary
// key is incomplete.
func (s *Store) EntryExistsByAny(ctx context.Context, source, externalID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM entries WHERE source = $1 OR external_id = $2 OR source = $2 OR external_id = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, nullable(source), nullable(externalID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("duplicate check by identifier failed: %w", err)
	}
	return exists, nil
}

// FindTransferBySource looks up an existing transfer whose outflow entry's
// source equals the record's transaction reference id.
func (s *Store) FindTransferBySource(ctx context.Context, source string) (outflowID, inflowID string, found bool, err error) {
	const q = `
		SELECT t.outflow_transaction_id, t.inflow_transaction_id
		FROM transfers t
		WHERE t.outflow_transaction_id IN (
			SELECT e.entryable_id FROM entries e
			WHERE e.entryable_type = 'Transaction' AND e.source = $1
		)`
	err = s.db.QueryRowContext(ctx, q, source).Scan(&outflowID, &inflowID)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("transfer lookup failed: %w", err)
	}
	return outflowID, inflowID, true, nil
}

// PostTransfer writes both legs of a funds movement and the transfer row
// linking them as one atomic unit. Any failure rolls back every write.
func (s *Store) PostTransfer(ctx context.Context, outTxn, inTxn domain.Transaction, outEntry, inEntry domain.LedgerEntry, tr domain.Transfer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer tx.Rollback()

	for _, txn := range []domain.Transaction{outTxn, inTxn} {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
	}
	for _, e := range []domain.LedgerEntry{outEntry, inEntry} {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	const q = `
		INSERT INTO transfers (outflow_transaction_id, inflow_transaction_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, q, tr.OutflowTransactionID, tr.InflowTransactionID, string(tr.Status), tr.CreatedAt, tr.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert transfer row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// PostStandalone writes one standard transaction and its single ledger entry
// atomically.
func (s *Store) PostStandalone(ctx context.Context, txn domain.Transaction, entry domain.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin entry transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn domain.Transaction) error {
	const q = `
		INSERT INTO transactions (id, created_at, updated_at, kind, category_id, merchant_id, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := tx.ExecContext(ctx, q,
		txn.ID, txn.CreatedAt, txn.UpdatedAt, string(txn.Kind),
		nullable(txn.CategoryID), nullable(txn.MerchantID), nullable(txn.ExternalID))
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e domain.LedgerEntry) error {
	const q = `
		INSERT INTO entries (id, account_id, entryable_type, entryable_id, amount, currency, date, name,
			created_at, updated_at, notes, external_id, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.AccountID, e.EntryableType, e.EntryableID,
		e.Amount.StringFixed(domain.AmountScale), e.Currency, e.Date, e.Name,
		e.CreatedAt, e.UpdatedAt, e.Notes, nullable(e.ExternalID), nullable(e.Source))
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
	}
	return nil
}

// InheritedCategory finds the category most frequently attached to historical
// entries whose name matches the payee: exact case-insensitive match first,
// then substring. Ties break on category id ordering so the result is
// deterministic. An empty result means no category is inherited.
func (s *Store) InheritedCategory(ctx context.Context, payee string) (string, error) {
	name := strings.TrimSpace(payee)
	if name == "" {
		return "", nil
	}

	const exactQ = `
		SELECT t.category_id, COUNT(*) AS n
		FROM entries e
		JOIN transactions t ON t.id = e.entryable_id AND e.entryable_type = 'Transaction'
		WHERE t.category_id IS NOT NULL AND LOWER(e.name) = LOWER($1)
		GROUP BY t.category_id
		ORDER BY n DESC, t.category_id ASC
		LIMIT 1`
	if cat, ok, err := s.queryCategory(ctx, exactQ, name); err != nil || ok {
		return cat, err
	}

	const substringQ = `
		SELECT t.category_id, COUNT(*) AS n
		FROM entries e
		JOIN transactions t ON t.id = e.entryable_id AND e.entryable_type = 'Transaction'
		WHERE t.category_id IS NOT NULL AND LOWER(e.name) LIKE '%' || LOWER($1) || '%'
		GROUP BY t.category_id
		ORDER BY n DESC, t.category_id ASC
		LIMIT 1`
	cat, _, err := s.queryCategory(ctx, substringQ, name)
	return cat, err
}

func (s *Store) queryCategory(ctx context.Context, query, name string) (string, bool, error) {
	var cat string
	var n int
	err := s.db.QueryRowContext(ctx, query, name).Scan(&cat, &n)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("category inheritance lookup failed: %w", err)
	}
	return cat, true, nil
}

// LoadAccounts reads the tracked-account catalog from the accounts table.
// The metadata column carries the display name and the matchable
// mobile/account-number identifier.
func (s *Store) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	const q = `SELECT id, metadata FROM accounts ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var id string
		var raw sql.NullString
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		acc := domain.Account{ID: id}
		if raw.Valid && raw.String != "" {
			var meta accountMetadata
			if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
				return nil, fmt.Errorf("account %s has malformed metadata: %w", id, err)
			}
			acc.Name = meta.Name
			acc.MatchName = meta.MatchName
			acc.Identifier = meta.Identifier
		}
		if acc.Name == "" {
			// Accounts without a display name cannot be matched; skip them.
			continue
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return out, nil
}

type accountMetadata struct {
	Name       string `json:"name"`
	MatchName  string `json:"match_name"`
	Identifier string `json:"identifier"`
}

// nullable maps "" to SQL NULL so optional identifiers never collide as
// empty-string duplicates.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
