package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Category is a named budget bucket. Actual is derived from the transactions
// assigned to it and is only ever written by the Ledger.
type Category struct {
	ID      string
	Name    string
	Planned decimal.Decimal
	Actual  decimal.Decimal
}

// Difference is planned minus actual.
func (c Category) Difference() decimal.Decimal {
	return c.Planned.Sub(c.Actual)
}

// CategoryUpdate carries the fields to change; nil fields are left alone.
type CategoryUpdate struct {
	Name    *string
	Planned *string
}

// FoldName returns the case-folded form of a category name for
// case-insensitive comparison.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two category names are equal ignoring case.
func SameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}
