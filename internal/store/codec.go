package store

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/money"
	"github.com/shopspring/decimal"
)

// document is the persisted layout: {"categories": [...], "transactions": [...]}.
type document struct {
	Categories   []categoryRecord    `json:"categories"`
	Transactions []transactionRecord `json:"transactions"`
}

type categoryRecord struct {
	CategoryID    string           `json:"category_id"`
	Name          string           `json:"name"`
	PlannedAmount *decimal.Decimal `json:"planned_amount"`
	ActualAmount  *decimal.Decimal `json:"actual_amount"`
}

type transactionRecord struct {
	TransactionID string           `json:"transaction_id"`
	Description   string           `json:"description"`
	Amount        *decimal.Decimal `json:"amount"`
	OccurredOn    string           `json:"occurred_on"`
	CategoryID    *string          `json:"category_id"`
	AccountID     *string          `json:"account_id"`
	AccountName   *string          `json:"account_name"`
	Counterparty  *string          `json:"counterparty"`
	Reference     *string          `json:"reference"`
	Company       *string          `json:"company"`
}

// Encode renders the ledger as indented JSON. Empty optional fields are
// written as null.
func Encode(l *domain.Ledger) ([]byte, error) {
	doc := document{
		Categories:   []categoryRecord{},
		Transactions: []transactionRecord{},
	}
	for _, c := range l.Categories() {
		planned, actual := c.Planned, c.Actual
		doc.Categories = append(doc.Categories, categoryRecord{
			CategoryID:    c.ID,
			Name:          c.Name,
			PlannedAmount: &planned,
			ActualAmount:  &actual,
		})
	}
	for _, t := range l.Transactions() {
		amount := t.Amount
		doc.Transactions = append(doc.Transactions, transactionRecord{
			TransactionID: t.ID,
			Description:   t.Description,
			Amount:        &amount,
			OccurredOn:    t.OccurredOn,
			CategoryID:    nullable(t.CategoryID),
			AccountID:     nullable(t.AccountID),
			AccountName:   nullable(t.AccountName),
			Counterparty:  nullable(t.Counterparty),
			Reference:     nullable(t.Reference),
			Company:       nullable(t.Company),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// Decode rebuilds a ledger from JSON. Stored actual amounts are ignored and
// recomputed. Missing planned amounts are zero, missing dates are today.
func Decode(data []byte) (*domain.Ledger, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}

	categories := make([]domain.Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		planned := decimal.Zero
		if c.PlannedAmount != nil {
			planned = *c.PlannedAmount
		}
		categories = append(categories, domain.Category{ID: c.CategoryID, Name: c.Name, Planned: planned})
	}

	transactions := make([]domain.Transaction, 0, len(doc.Transactions))
	for i, t := range doc.Transactions {
		if t.Amount == nil {
			return nil, fmt.Errorf("decode ledger: transaction %d has no amount", i)
		}
		occurredOn := money.Today()
		if t.OccurredOn != "" {
			d, err := money.NormalizeDate(t.OccurredOn)
			if err != nil {
				return nil, fmt.Errorf("decode ledger: transaction %d: %w", i, err)
			}
			occurredOn = d
		}
		transactions = append(transactions, domain.Transaction{
			ID:           t.TransactionID,
			Description:  t.Description,
			Amount:       *t.Amount,
			OccurredOn:   occurredOn,
			CategoryID:   deref(t.CategoryID),
			AccountID:    deref(t.AccountID),
			AccountName:  deref(t.AccountName),
			Counterparty: deref(t.Counterparty),
			Reference:    deref(t.Reference),
			Company:      deref(t.Company),
		})
	}
	return domain.Restore(categories, transactions), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
