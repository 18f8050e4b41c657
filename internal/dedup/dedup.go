// Package dedup decides whether a parsed record has already been posted.
//
// The check is three-valued rather than boolean: a store failure during the
// existence query yields Indeterminate, which callers treat as "not a
// duplicate" after the connection is recovered. That bias trades possible
// duplicate insertion under failure for never silently losing a record; the
// recovery path for duplicates is re-running the batch.
package dedup

import (
	"context"

	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// Result is the outcome of a duplicate check.
type Result int

const (
	// NotFound means the record has not been posted before.
	NotFound Result = iota
	// Found means a matching entry already exists in the store.
	Found
	// Indeterminate means the store could not answer; the caller must treat
	// the record as new (at-least-once posting).
	Indeterminate
)

func (r Result) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// ExistenceStore is the slice of the persistent store the detector needs.
type ExistenceStore interface {
	EntryExistsByKey(ctx context.Context, accountID, source, externalID string) (bool, error)
	EntryExistsByAny(ctx context.Context, source, externalID string) (bool, error)
	Reset(ctx context.Context)
}

// Detector checks records against the store.
type Detector struct {
	store ExistenceStore
	log   *zap.Logger
}

// New creates a Detector. The logger is used for the indeterminate condition,
// which must be distinguishable from a confirmed "new record" in the logs.
func New(store ExistenceStore, log *zap.Logger) *Detector {
	return &Detector{store: store, log: log}
}

// Check resolves whether the record was already posted to selfAccountID.
//
// The primary idempotency key (account id, transaction reference id, UTR) is
// used when complete; otherwise the looser secondary key matches any stored
// entry whose source or external id equals either identifier. A record with
// neither identifier can never be confirmed as a duplicate.
func (d *Detector) Check(ctx context.Context, rec *domain.ParsedRecord, selfAccountID string) Result {
	if rec.TransactionID == "" && rec.UTR == "" {
		return NotFound
	}

	var exists bool
	var err error
	if selfAccountID != "" && rec.TransactionID != "" && rec.UTR != "" {
		exists, err = d.store.EntryExistsByKey(ctx, selfAccountID, rec.TransactionID, rec.UTR)
	} else {
		exists, err = d.store.EntryExistsByAny(ctx, rec.TransactionID, rec.UTR)
	}
	if err != nil {
		d.store.Reset(ctx)
		d.log.Warn("duplicate check indeterminate; treating record as new",
			zap.String("source", rec.TransactionID),
			zap.String("external_id", rec.UTR),
			zap.Error(err))
		return Indeterminate
	}
	if exists {
		return Found
	}
	return NotFound
}
