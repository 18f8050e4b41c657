// Package normalize canonicalizes the textual date, time and amount tokens of
// an extracted record into fixed, comparable representations.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// dateLayouts are tried in order against the cleaned token.
var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-1-2",
	"2-1-2006",
	"2/1/2006",
}

var (
	numberGroups = regexp.MustCompile(`\d+`)
	commaSpacing = regexp.MustCompile(`,\s*`)
	bareNumber   = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// Date converts a statement date token to YYYY-MM-DD. Unknown layouts fall
// back to a numeric heuristic: a 4-digit leading group is year-month-day,
// otherwise day-month-year. It never fails: an unparseable token is returned
// unchanged, and callers must treat a non-normalized result as a soft failure
// and drop the record.
func Date(token string) string {
	if token == "" {
		return ""
	}
	s := strings.TrimSpace(strings.ReplaceAll(token, " ", " "))
	s = commaSpacing.ReplaceAllString(s, ", ")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}

	nums := numberGroups.FindAllString(s, -1)
	if len(nums) >= 3 {
		var y, m, d string
		if len(nums[0]) == 4 {
			y, m, d = nums[0], nums[1], nums[2]
		} else {
			d, m, y = nums[0], nums[1], nums[2]
		}
		if t, err := time.Parse("2006-1-2", y+"-"+m+"-"+d); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// IsNormalizedDate reports whether s is an exact YYYY-MM-DD calendar date.
func IsNormalizedDate(s string) bool {
	t, err := time.Parse("2006-01-02", s)
	return err == nil && t.Format("2006-01-02") == s
}

// Time converts a 12-hour ("6:39 PM") or 24-hour ("18:39") clock token to
// HH:MM. An empty token yields "00:00", used only for deterministic ordering.
// An unrecognized token is returned unchanged.
func Time(token string) string {
	if strings.TrimSpace(token) == "" {
		return "00:00"
	}
	t := strings.ToUpper(strings.TrimSpace(token))
	if parsed, err := time.Parse("3:04 PM", t); err == nil {
		return parsed.Format("15:04")
	}
	if parsed, err := time.Parse("15:04", t); err == nil {
		return parsed.Format("15:04")
	}
	return t
}

// Amount parses a magnitude token to a fixed-point decimal at scale 4 with
// half-up rounding. Commas and stray text are tolerated; the first numeric
// group is used when the token as a whole does not parse.
func Amount(token string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount token")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		m := bareNumber.FindString(s)
		if m == "" {
			return decimal.Zero, fmt.Errorf("unparseable amount %q", token)
		}
		d, err = decimal.NewFromString(m)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unparseable amount %q", token)
		}
	}
	return d.Abs().Round(domain.AmountScale), nil
}
