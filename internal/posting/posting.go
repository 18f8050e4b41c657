// Package posting writes parsed records into the ledger: balanced double-entry
// transfers between two tracked accounts, or standalone entries when no
// transfer target applies.
//
// Sign convention (applied nowhere else): negative = funds added to an
// account's tracked total, positive = funds removed. Both transfer legs are
// exact negations of each other at scale 4.
package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
	"github.com/rumor-ml/commons.systems/walletparse/internal/resolve"
	"github.com/rumor-ml/commons.systems/walletparse/internal/store"
)

// Status is the outcome of a transfer attempt.
type Status string

const (
	// StatusCreated means both legs and the transfer row were written.
	StatusCreated Status = "created"
	// StatusExists means an identical transfer was already linked.
	StatusExists Status = "exists"
	// StatusSkip means the payee matched no tracked account; the caller
	// proceeds to the standalone writer.
	StatusSkip Status = "skip"
	// StatusError means the atomic write failed and was rolled back; the
	// caller falls back to the standalone writer rather than aborting.
	StatusError Status = "error"
)

// TransferResult reports a transfer attempt.
type TransferResult struct {
	Status               Status
	OutflowTransactionID string
	InflowTransactionID  string
	Reason               string // set for skip and error
}

// Options carry the run-constant posting values.
type Options struct {
	Currency string
	Notes    string
	// Provider is the fallback entry name when a record has no payee.
	Provider string
}

// Engine posts records. Construction wires the immutable collaborators; the
// engine itself holds no per-record state.
type Engine struct {
	store    *store.Store
	resolver *resolve.Resolver
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// New creates an Engine. now is the wall clock used for updated_at columns;
// pass time.Now outside tests.
func New(st *store.Store, resolver *resolve.Resolver, opts Options, log *zap.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: st, resolver: resolver, opts: opts, log: log, now: now}
}

// Transfer attempts to post rec as an internal funds movement.
//
// State machine: no transfer target → skip; target with an existing linked
// outflow → exists; otherwise one atomic write of two transactions, two
// entries and the transfer row → created, or error with every write rolled
// back.
func (e *Engine) Transfer(ctx context.Context, rec *domain.ParsedRecord, self domain.Account, createdAt time.Time) TransferResult {
	target := e.resolver.Target(rec.Payee)
	if target == nil {
		return TransferResult{Status: StatusSkip, Reason: "no account match"}
	}
	if target.ID == self.ID {
		return TransferResult{Status: StatusSkip, Reason: "payee matches the self account"}
	}

	if rec.TransactionID != "" {
		outID, inID, found, err := e.store.FindTransferBySource(ctx, rec.TransactionID)
		if err != nil {
			return TransferResult{Status: StatusError, Reason: fmt.Sprintf("idempotency lookup: %v", err)}
		}
		if found {
			return TransferResult{Status: StatusExists, OutflowTransactionID: outID, InflowTransactionID: inID}
		}
	}

	// Debit: money left the self account. Credit: the sides swap.
	from, to := self, *target
	if rec.Direction == domain.DirectionCredit {
		from, to = *target, self
	}

	now := e.now()
	magnitude := rec.Amount.Round(domain.AmountScale)

	outTxn := domain.Transaction{
		ID:         uuid.NewString(),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		Kind:       domain.KindFundsMovement,
		ExternalID: rec.TransactionID,
	}
	inTxn := domain.Transaction{
		ID:         uuid.NewString(),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		Kind:       domain.KindFundsMovement,
		ExternalID: inflowSource(rec.TransactionID),
	}

	outEntry := e.entry(rec, from.ID, outTxn.ID, magnitude, "Transfer to "+to.Name, createdAt, now)
	outEntry.Source = rec.TransactionID
	inEntry := e.entry(rec, to.ID, inTxn.ID, magnitude.Neg(), "Transfer from "+from.Name, createdAt, now)
	inEntry.Source = inflowSource(rec.TransactionID)

	tr := domain.Transfer{
		OutflowTransactionID: outTxn.ID,
		InflowTransactionID:  inTxn.ID,
		Status:               domain.TransferConfirmed,
		CreatedAt:            createdAt,
		UpdatedAt:            now,
	}

	if err := e.store.PostTransfer(ctx, outTxn, inTxn, outEntry, inEntry, tr); err != nil {
		return TransferResult{Status: StatusError, Reason: err.Error()}
	}

	e.log.Info("transfer created",
		zap.String("from", from.Name),
		zap.String("to", to.Name),
		zap.String("amount", magnitude.StringFixed(domain.AmountScale)),
		zap.String("source", rec.TransactionID))
	return TransferResult{
		Status:               StatusCreated,
		OutflowTransactionID: outTxn.ID,
		InflowTransactionID:  inTxn.ID,
	}
}

// Standalone posts rec as a single standard transaction and ledger entry on
// the self account, inheriting a category from historical entries with the
// same payee when one exists.
func (e *Engine) Standalone(ctx context.Context, rec *domain.ParsedRecord, self domain.Account, createdAt time.Time) error {
	categoryID, err := e.store.InheritedCategory(ctx, rec.Payee)
	if err != nil {
		// Inheritance is best-effort; the entry is still posted uncategorized.
		e.log.Warn("category inheritance failed", zap.String("payee", rec.Payee), zap.Error(err))
		categoryID = ""
	}

	now := e.now()
	txn := domain.Transaction{
		ID:         uuid.NewString(),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		Kind:       domain.KindStandard,
		CategoryID: categoryID,
		ExternalID: rec.TransactionID,
	}

	entry := e.entry(rec, self.ID, txn.ID, signedAmount(rec), rec.Payee, createdAt, now)
	entry.Source = rec.TransactionID
	if entry.Name == "" {
		entry.Name = e.opts.Provider
	}

	if err := e.store.PostStandalone(ctx, txn, entry); err != nil {
		return err
	}
	e.log.Info("entry created",
		zap.String("payee", entry.Name),
		zap.String("amount", entry.Amount.StringFixed(domain.AmountScale)),
		zap.String("source", rec.TransactionID))
	return nil
}

// entry builds the common ledger-entry shape for both writers.
func (e *Engine) entry(rec *domain.ParsedRecord, accountID, txnID string, amount decimal.Decimal, name string, createdAt, now time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		EntryableType: "Transaction",
		EntryableID:   txnID,
		Amount:        amount.Round(domain.AmountScale),
		Currency:      e.opts.Currency,
		Date:          rec.Date,
		Name:          name,
		CreatedAt:     createdAt,
		UpdatedAt:     now,
		Notes:         e.opts.Notes,
		ExternalID:    rec.UTR,
	}
}

// signedAmount applies the canonical convention to a standalone entry:
// debit (funds removed) is positive, credit (funds added) is negative.
// Unknown direction is treated as a debit, the overwhelmingly common case in
// wallet statements.
func signedAmount(rec *domain.ParsedRecord) decimal.Decimal {
	m := rec.Amount.Round(domain.AmountScale)
	if rec.Direction == domain.DirectionCredit {
		return m.Neg()
	}
	return m
}

// inflowSource derives the inflow leg's source id so the secondary duplicate
// key sees both legs.
func inflowSource(source string) string {
	if source == "" {
		return ""
	}
	return source + "_IN"
}
