package budget

import (
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/money"
)

// UnassignedLabel is shown for transactions without a category.
const UnassignedLabel = "Unassigned"

// CategoryRow is a category shaped for display. Amounts have two decimals.
type CategoryRow struct {
	ID         string `json:"category_id"`
	Name       string `json:"name"`
	Planned    string `json:"planned"`
	Actual     string `json:"actual"`
	Difference string `json:"difference"`
}

// TransactionRow is a transaction shaped for display.
type TransactionRow struct {
	ID           string `json:"transaction_id"`
	Description  string `json:"description"`
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	Category     string `json:"category"`
	CategoryID   string `json:"category_id,omitempty"`
	OccurredOn   string `json:"occurred_on"`
	Counterparty string `json:"counterparty,omitempty"`
	Reference    string `json:"reference,omitempty"`
	Company      string `json:"company,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// Totals sums all categories.
type Totals struct {
	Planned   string `json:"planned"`
	Actual    string `json:"actual"`
	Remaining string `json:"remaining"`
}

// CategoryRowFor shapes one category for display.
func CategoryRowFor(c domain.Category) CategoryRow {
	return CategoryRow{
		ID:         c.ID,
		Name:       c.Name,
		Planned:    money.Format(c.Planned),
		Actual:     money.Format(c.Actual),
		Difference: money.Format(c.Difference()),
	}
}

// CategoriesForDisplay lists categories in creation order.
func (s *Service) CategoriesForDisplay() []CategoryRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := s.ledger.Categories()
	rows := make([]CategoryRow, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, CategoryRowFor(c))
	}
	return rows
}

// TransactionsForDisplay lists transactions in entry order, with any
// pending suggestion.
func (s *Service) TransactionsForDisplay() []TransactionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.ledger.Transactions()
	rows := make([]TransactionRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, s.transactionRowLocked(t))
	}
	return rows
}

// TransactionForDisplay shapes a single transaction.
func (s *Service) TransactionForDisplay(id string) (TransactionRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.ledger.Transaction(id)
	if !ok {
		return TransactionRow{}, false
	}
	return s.transactionRowLocked(t), true
}

func (s *Service) transactionRowLocked(t domain.Transaction) TransactionRow {
	category := UnassignedLabel
	if c, ok := s.ledger.Category(t.CategoryID); ok {
		category = c.Name
	}
	row := TransactionRow{
		ID:           t.ID,
		Description:  t.Description,
		Account:      t.Account(),
		Amount:       money.Format(t.Amount),
		Category:     category,
		CategoryID:   t.CategoryID,
		OccurredOn:   t.OccurredOn,
		Counterparty: t.Counterparty,
		Reference:    t.Reference,
		Company:      t.Company,
	}
	if r, ok := s.suggestions[t.ID]; ok {
		row.Suggestion = r.String()
	}
	return row
}

// Totals returns planned, actual and remaining (planned minus actual).
func (s *Service) Totals() Totals {
	s.mu.RLock()
	planned, actual := s.ledger.Totals()
	s.mu.RUnlock()

	return Totals{
		Planned:   money.Format(planned),
		Actual:    money.Format(actual),
		Remaining: money.Format(planned.Sub(actual)),
	}
}
