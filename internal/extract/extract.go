// Package extract pulls the raw transaction fields out of a segmented block.
//
// Every field is resolved by an ordered list of strategies, each returning an
// optional result; the first success wins. Keeping the strategies as data
// makes each heuristic independently testable instead of burying them in
// nested conditionals.
package extract

import (
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
	"github.com/rumor-ml/commons.systems/walletparse/internal/segment"
)

// Fields is the raw field dictionary extracted from one block. All values are
// statement text, not yet normalized.
type Fields struct {
	DateToken     string
	TimeToken     string
	Payee         string
	TransactionID string
	UTR           string
	AmountToken   string
	Direction     domain.Direction
}

var (
	timeToken    = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:AM|PM)|\b\d{1,2}:\d{2}\b`)
	currencyAmt  = regexp.MustCompile(`(?i)INR\s*([0-9,]+(?:\.[0-9]+)?)`)
	bareAmt      = regexp.MustCompile(`[0-9]{1,3}(?:,[0-9]{3})*\.[0-9]+|\d+(?:\.[0-9]+)?`)
	labeledTxnID = regexp.MustCompile(`(?i)Transaction\s*ID\s*[:\-\s]*([A-Za-z0-9]+)`)
	genericTxnID = regexp.MustCompile(`\b([A-Z]{1,4}\d{5,}[A-Za-z0-9]*)\b`)
	labeledUTR   = regexp.MustCompile(`(?i)UTR\s*No\s*[:\-\s]*([A-Za-z0-9]+)`)
	debitWord    = regexp.MustCompile(`(?i)\bDebit\b`)
	creditWord   = regexp.MustCompile(`(?i)\bCredit\b`)
	pureDigits   = regexp.MustCompile(`^\d+$`)
)

// payeePrefixes introduce the counterparty name, longest marker first so
// "Bill paid -" wins over "Bill paid".
var payeePrefixes = []string{"Paid to", "Received from", "Bill paid -", "Bill paid"}

// fieldMarkers terminate a payee capture: the next labeled field, the
// currency marker, or a direction word.
var fieldMarkers = []string{"Transaction ID", "UTR", "INR", "Debited from", "Credited to", "Debit", "Credit"}

// headerKeywords are statement furniture that bleeds into blocks from
// adjacent pages. Block text is truncated at the first occurrence.
var headerKeywords = []string{
	"date transaction details type amount",
	"date transaction details",
	"transaction details",
}

// stringStrategy resolves one textual field from block text, reporting
// whether it succeeded.
type stringStrategy func(text string) (string, bool)

var payeeStrategies = []stringStrategy{payeeFromPrefix, payeeFromSplit}

var txnIDStrategies = []stringStrategy{txnIDFromLabel, txnIDFromGenericToken}

var amountStrategies = []stringStrategy{amountFromCurrencyMarker, amountFromLastBareToken}

// Extractor turns blocks into raw field dictionaries.
type Extractor struct{}

// New returns an Extractor. It is stateless and safe for concurrent use.
func New() *Extractor {
	return &Extractor{}
}

// Extract resolves the fields of one block. It returns ok=false when the
// block cannot yield a record: no payee, no date token, or a block that is
// really the statement's own period header.
func (e *Extractor) Extract(b segment.Block) (Fields, bool) {
	text := truncateAtHeader(b.Text)
	if text == "" || segment.IsDateRangeHeader(text) {
		return Fields{}, false
	}

	var f Fields

	f.DateToken = segment.DateTokenIn(text)
	if f.DateToken == "" {
		return Fields{}, false
	}

	for _, strat := range payeeStrategies {
		if v, ok := strat(text); ok {
			f.Payee = v
			break
		}
	}
	if f.Payee == "" || looksLikeColumnHeader(f.Payee) {
		return Fields{}, false
	}

	for _, strat := range txnIDStrategies {
		if v, ok := strat(text); ok {
			f.TransactionID = v
			break
		}
	}

	// UTR has no fallback: labeled token only.
	if m := labeledUTR.FindStringSubmatch(text); m != nil {
		f.UTR = m[1]
	}

	for _, strat := range amountStrategies {
		if v, ok := strat(text); ok {
			f.AmountToken = v
			break
		}
	}

	f.Direction = directionOf(text)

	if m := timeToken.FindString(text); m != "" {
		f.TimeToken = strings.TrimSpace(m)
	}

	return f, true
}

// truncateAtHeader strips everything from the first header/footer keyword on,
// removing bleed from adjacent statement furniture.
func truncateAtHeader(text string) string {
	low := strings.ToLower(text)
	cut := len(text)
	for _, kw := range headerKeywords {
		if i := strings.Index(low, kw); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(text[:cut])
}

// payeeFromPrefix captures the text after "Paid to"/"Received from"/"Bill
// paid" up to the next field marker.
func payeeFromPrefix(text string) (string, bool) {
	low := strings.ToLower(text)
	for _, prefix := range payeePrefixes {
		i := strings.Index(low, strings.ToLower(prefix))
		if i < 0 {
			continue
		}
		rest := text[i+len(prefix):]
		name := cutAtFieldMarker(rest)
		name = strings.Trim(name, " ,:-")
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// payeeFromSplit is the fallback: the first segment of the block when split
// on field-marker keywords.
func payeeFromSplit(text string) (string, bool) {
	name := cutAtFieldMarker(text)
	// The date anchor usually leads the block; drop it and any time token.
	name = dateAndTimePrefix.ReplaceAllString(name, "")
	name = strings.Trim(name, " ,:-")
	if name == "" {
		return "", false
	}
	return name, true
}

var dateAndTimePrefix = regexp.MustCompile(`(?i)^(?:[A-Za-z]{3,9}\s*\d{1,2},\s*\d{4}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}-\d{1,2}-\d{1,2})\s*(?:\d{1,2}:\d{2}\s*(?:AM|PM)?)?\s*`)

// cutAtFieldMarker returns s truncated at the earliest field marker.
func cutAtFieldMarker(s string) string {
	low := strings.ToLower(s)
	cut := len(s)
	for _, marker := range fieldMarkers {
		if i := indexWord(low, strings.ToLower(marker)); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

// indexWord finds marker in s at a word boundary, so "Credit" does not match
// inside "Creditors Traders".
func indexWord(s, marker string) int {
	from := 0
	for {
		i := strings.Index(s[from:], marker)
		if i < 0 {
			return -1
		}
		i += from
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(marker)
		after := afterIdx >= len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// txnIDFromLabel captures an explicitly labeled "Transaction ID: ..." token.
func txnIDFromLabel(text string) (string, bool) {
	if m := labeledTxnID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// txnIDFromGenericToken accepts a short letter prefix followed by at least
// five digits, rejecting pure-digit candidates (those are amounts or UTRs).
func txnIDFromGenericToken(text string) (string, bool) {
	m := genericTxnID.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	cand := m[1]
	if len(cand) < 6 || pureDigits.MatchString(cand) {
		return "", false
	}
	return cand, true
}

// amountFromCurrencyMarker prefers the currency-prefixed numeric token.
func amountFromCurrencyMarker(text string) (string, bool) {
	if m := currencyAmt.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(m[1], ",", ""), true
	}
	return "", false
}

// amountFromLastBareToken falls back to the last bare numeric token in the
// block, which in wallet statements is the transaction amount.
func amountFromLastBareToken(text string) (string, bool) {
	all := bareAmt.FindAllString(text, -1)
	if len(all) == 0 {
		return "", false
	}
	return strings.ReplaceAll(all[len(all)-1], ",", ""), true
}

// directionOf reads the Debit/Credit keyword, defaulting to unknown.
func directionOf(text string) domain.Direction {
	if debitWord.MatchString(text) {
		return domain.DirectionDebit
	}
	if creditWord.MatchString(text) {
		return domain.DirectionCredit
	}
	return domain.DirectionUnknown
}

// looksLikeColumnHeader rejects payees that are really the statement's column
// labels bleeding through.
func looksLikeColumnHeader(payee string) bool {
	return strings.HasPrefix(strings.ToLower(payee), "date transaction details")
}
