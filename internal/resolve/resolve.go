// Package resolve maps statement records onto the catalog of tracked
// accounts: which account owns the statement ("self") and whether a payee
// names another tracked account (a transfer target).
package resolve

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// Catalog is the immutable set of tracked accounts, in configured order.
// Matching is first-match-wins in catalog order; there is no ranking.
type Catalog struct {
	accounts []domain.Account
	defaults domain.Account
}

// NewCatalog builds a catalog. defaultID must name one of the accounts; it is
// the self account used when no linked identifier resolves.
func NewCatalog(accounts []domain.Account, defaultID string) (*Catalog, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("catalog cannot be empty")
	}
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("catalog account needs id and name, got id=%q name=%q", a.ID, a.Name)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate catalog account id %s", a.ID)
		}
		seen[a.ID] = true
	}
	var def *domain.Account
	for i := range accounts {
		if accounts[i].ID == defaultID {
			def = &accounts[i]
			break
		}
	}
	if def == nil {
		return nil, fmt.Errorf("default account %s not present in catalog", defaultID)
	}
	cp := make([]domain.Account, len(accounts))
	copy(cp, accounts)
	return &Catalog{accounts: cp, defaults: *def}, nil
}

// Accounts returns a defensive copy of the catalog entries.
func (c *Catalog) Accounts() []domain.Account {
	return append([]domain.Account(nil), c.accounts...)
}

// Default returns the configured default self account.
func (c *Catalog) Default() domain.Account {
	return c.defaults
}

// Resolver answers self-account and transfer-target questions against one
// catalog. It is immutable after construction.
type Resolver struct {
	catalog *Catalog
}

// New creates a Resolver over the catalog.
func New(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Self resolves the tracked account owning a statement. A linked identifier
// (mobile or account number) is matched against the catalog; no identifier or
// no match falls back to the default account. Self never fails.
func (r *Resolver) Self(linkedID string) domain.Account {
	id := strings.TrimSpace(linkedID)
	if id == "" {
		return r.catalog.defaults
	}
	for _, a := range r.catalog.accounts {
		if a.Identifier != "" && digitsOf(a.Identifier) == digitsOf(id) {
			return a
		}
	}
	return r.catalog.defaults
}

// Target resolves a transfer target from a payee name by case-insensitive
// substring match against the accounts' match names, first match in catalog
// order. A nil result means the record is not a transfer.
func (r *Resolver) Target(payee string) *domain.Account {
	needle := foldName(payee)
	if needle == "" {
		return nil
	}
	for i := range r.catalog.accounts {
		mn := r.catalog.accounts[i].MatchName
		if mn == "" {
			mn = r.catalog.accounts[i].Name
		}
		if strings.Contains(needle, foldName(mn)) {
			return &r.catalog.accounts[i]
		}
	}
	return nil
}

// foldName lowercases a name and strips diacritics so "Café" matches "cafe".
var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(s string) string {
	folded, _, err := transform.String(markStripper, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// digitsOf keeps only the digits of an identifier, so "+91 98765-43210"
// matches "9876543210".
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
