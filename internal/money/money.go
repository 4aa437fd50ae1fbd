// Package money holds the exact decimal and calendar-date primitives shared by
// the ledger, the CSV importer and the persistence codec.
package money

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date layout used for every occurred-on value.
const DateLayout = "2006-01-02"

// ErrEmpty is returned by Parse for blank input.
var ErrEmpty = errors.New("empty amount")

// Parse converts a user-supplied numeral such as "200", "-35.40" or "1e2"
// into an exact decimal. Full precision is kept.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// ParseEuropean converts an amount written with a period as thousands
// separator and a comma as decimal separator ("1.234,56") into a decimal.
// Non-breaking spaces are ignored and an empty value is zero.
func ParseEuropean(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("\u00a0", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse european amount %q: %w", s, err)
	}
	return d, nil
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NormalizeDate returns s as a YYYY-MM-DD date. RFC3339 timestamps are
// truncated to their date part.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today is the local calendar date.
func Today() string {
	return FormatDate(time.Now())
}
