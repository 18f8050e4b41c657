// Package domain holds the core types shared by the statement import pipeline:
// the transient ParsedRecord produced by segmentation/extraction and the
// persisted Transaction / LedgerEntry / Transfer rows written by posting.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the statement-side debit/credit marker of a record.
// Use ParseDirection to derive it from statement text.
type Direction string

const (
	DirectionDebit   Direction = "debit"
	DirectionCredit  Direction = "credit"
	DirectionUnknown Direction = "unknown"
)

// TransactionKind distinguishes ordinary expenses/income from the two legs
// of an internal transfer.
type TransactionKind string

const (
	KindStandard      TransactionKind = "standard"
	KindFundsMovement TransactionKind = "funds_movement"
)

// TransferStatus is the lifecycle state of a Transfer row. The importer only
// ever writes confirmed transfers.
type TransferStatus string

const (
	TransferConfirmed TransferStatus = "confirmed"
)

// AmountScale is the fixed-point scale of all persisted amounts, matching the
// store's numeric(19,4) columns.
const AmountScale = 4

// ParsedRecord is one transaction candidate extracted from a statement block.
// It is transient: created by the segmenter/extractor, consumed exactly once
// by the posting stage, then discarded.
//
// Amount is always a non-negative magnitude at this stage; the sign
// convention is applied by the posting stage.
type ParsedRecord struct {
	Date          string // normalized YYYY-MM-DD
	Time          string // normalized HH:MM, "00:00" when the statement had none
	Payee         string
	TransactionID string // wallet-assigned reference, may be empty
	UTR           string // bank reference number, may be empty
	Direction     Direction
	Amount        decimal.Decimal // non-negative magnitude, scale 4
	LinkedID      string          // mobile/account number from the statement header, may be empty
}

// NewParsedRecord creates a validated record. Payee and date are required;
// a negative amount is rejected because sign is applied later.
func NewParsedRecord(date, payee string, amount decimal.Decimal, dir Direction) (*ParsedRecord, error) {
	if date == "" {
		return nil, fmt.Errorf("record date cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("record date %q is not normalized: %w", date, err)
	}
	if payee == "" {
		return nil, fmt.Errorf("record payee cannot be empty")
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("record amount must be a non-negative magnitude, got %s", amount)
	}
	return &ParsedRecord{
		Date:      date,
		Time:      "00:00",
		Payee:     payee,
		Direction: dir,
		Amount:    amount.Round(AmountScale),
	}, nil
}

// Timestamp combines the normalized date and time into a wall-clock instant
// truncated to whole seconds. It fails rather than substituting the current
// time so callers can drop the record explicitly.
func (r *ParsedRecord) Timestamp() (time.Time, error) {
	clock := r.Time
	if clock == "" {
		clock = "00:00"
	}
	ts, err := time.Parse("2006-01-02 15:04", r.Date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot form timestamp from date %q time %q: %w", r.Date, r.Time, err)
	}
	return ts.Truncate(time.Second), nil
}

// Transaction is a persisted transactions row. Immutable once written.
type Transaction struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Kind       TransactionKind
	CategoryID string // empty = NULL
	MerchantID string // empty = NULL
	ExternalID string // empty = NULL
}

// LedgerEntry is a persisted entries row pointing at a Transaction.
// Amount carries the canonical sign convention: negative = funds added to the
// account's tracked total, positive = funds removed.
type LedgerEntry struct {
	ID            string
	AccountID     string
	EntryableType string // always "Transaction"
	EntryableID   string
	Amount        decimal.Decimal // signed, scale 4
	Currency      string
	Date          string // YYYY-MM-DD
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Notes         string
	ExternalID    string // UTR, empty = NULL
	Source        string // wallet transaction id, empty = NULL
}

// Transfer links the outflow and inflow Transactions of an internal funds
// movement. The two referenced entries hold exact negations of each other
// and live on two distinct accounts.
type Transfer struct {
	OutflowTransactionID string
	InflowTransactionID  string
	Status               TransferStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Account is one tracked account from the catalog (config or the store's
// accounts table). Read-only for this importer.
type Account struct {
	ID         string
	Name       string // display name, e.g. "PSG SBI AC"
	MatchName  string // payee text that identifies a transfer to this account
	Identifier string // mobile/account number used for self-account resolution
}

// ParseDirection maps statement debit/credit words to a Direction.
func ParseDirection(s string) Direction {
	switch {
	case strings.EqualFold(s, "debit"):
		return DirectionDebit
	case strings.EqualFold(s, "credit"):
		return DirectionCredit
	default:
		return DirectionUnknown
	}
}
