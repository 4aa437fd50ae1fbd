package classifier

import (
	"regexp"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	tokenBoundary = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeKey identifies a recurring transaction: description,
// counterparty, account and reference, lower-cased with whitespace
// collapsed.
func NormalizeKey(t domain.Transaction) string {
	text := joinNonEmpty(t.Description, t.Counterparty, t.Account(), t.Reference)
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

// Tokens is the set of lower-case alphanumeric tokens of the descriptive
// fields.
func Tokens(t domain.Transaction) map[string]bool {
	text := strings.ToLower(joinNonEmpty(t.Description, t.Counterparty, t.AccountName, t.Reference))
	tokens := make(map[string]bool)
	for _, tok := range tokenBoundary.Split(text, -1) {
		if tok != "" {
			tokens[tok] = true
		}
	}
	return tokens
}

func intersects(a, b map[string]bool) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for tok := range a {
		if b[tok] {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
