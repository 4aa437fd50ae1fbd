package domain

import (
	"github.com/shopspring/decimal"
)

// Transaction is a single dated monetary movement. Negative amounts are
// expenses. An empty CategoryID means the transaction is unassigned; the
// other optional fields are empty when unknown.
type Transaction struct {
	ID           string
	Description  string
	Amount       decimal.Decimal
	OccurredOn   string // YYYY-MM-DD
	CategoryID   string
	AccountID    string
	AccountName  string
	Counterparty string
	Reference    string
	Company      string
}

// Assigned reports whether the transaction has a category.
func (t Transaction) Assigned() bool {
	return t.CategoryID != ""
}

// Account is the account name, falling back to the account id.
func (t Transaction) Account() string {
	if t.AccountName != "" {
		return t.AccountName
	}
	return t.AccountID
}

// NewTransaction is the input to Ledger.RecordTransaction. Amount is a
// numeral as typed by the user; OccurredOn defaults to today.
type NewTransaction struct {
	ID           string
	Description  string
	Amount       string
	CategoryID   string
	OccurredOn   string
	AccountID    string
	AccountName  string
	Counterparty string
	Reference    string
	Company      string
}
