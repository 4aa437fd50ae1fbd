// Package domain contains the budget ledger aggregate. Every mutation of a
// category or transaction goes through Ledger so that each category's actual
// amount always equals the sum of the transactions assigned to it.
//
// A Ledger is not safe for concurrent use; callers serialise access.
package domain

import (
	"errors"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger owns all categories and transactions.
type Ledger struct {
	categories   map[string]*Category
	order        []string
	transactions []Transaction
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{categories: make(map[string]*Category)}
}

// Restore rebuilds a ledger from stored records. Stored actual amounts are
// ignored and recomputed. A transaction whose category no longer exists is
// detached and becomes unassigned. Records without an id get a fresh one.
func Restore(categories []Category, transactions []Transaction) *Ledger {
	l := NewLedger()
	for _, c := range categories {
		if c.ID == "" || l.categories[c.ID] != nil {
			c.ID = newID()
		}
		c.Actual = decimal.Zero
		cat := c
		l.categories[cat.ID] = &cat
		l.order = append(l.order, cat.ID)
	}
	seen := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		if t.ID == "" || seen[t.ID] {
			t.ID = newID()
		}
		seen[t.ID] = true
		if t.CategoryID != "" && l.categories[t.CategoryID] == nil {
			t.CategoryID = ""
		}
		l.transactions = append(l.transactions, t)
	}
	l.RecomputeActuals()
	return l
}

// newID returns an opaque 32 character hex identifier.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddCategory creates a category with the given planned amount and a zero
// actual amount.
func (l *Ledger) AddCategory(name, planned string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, invalid("name", name, errors.New("must not be empty"))
	}
	amount, err := money.Parse(planned)
	if err != nil {
		return Category{}, invalid("planned amount", planned, err)
	}

	c := &Category{ID: newID(), Name: name, Planned: amount, Actual: decimal.Zero}
	l.categories[c.ID] = c
	l.order = append(l.order, c.ID)
	return *c, nil
}

// UpdateCategory applies the supplied fields of upd to the category.
func (l *Ledger) UpdateCategory(id string, upd CategoryUpdate) (Category, error) {
	c, ok := l.categories[id]
	if !ok {
		return Category{}, notFound("category", id)
	}

	var name string
	if upd.Name != nil {
		name = strings.TrimSpace(*upd.Name)
		if name == "" {
			return Category{}, invalid("name", *upd.Name, errors.New("must not be empty"))
		}
	}
	var planned decimal.Decimal
	if upd.Planned != nil {
		amount, err := money.Parse(*upd.Planned)
		if err != nil {
			return Category{}, invalid("planned amount", *upd.Planned, err)
		}
		planned = amount
	}

	if upd.Name != nil {
		c.Name = name
	}
	if upd.Planned != nil {
		c.Planned = planned
	}
	return *c, nil
}

// RemoveCategory deletes the category together with every transaction
// assigned to it. Transactions are removed, not moved to unassigned. An
// unknown id is a no-op. It returns the number of transactions removed.
func (l *Ledger) RemoveCategory(id string) int {
	if _, ok := l.categories[id]; !ok {
		return 0
	}
	delete(l.categories, id)
	for i, cid := range l.order {
		if cid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	kept := l.transactions[:0]
	removed := 0
	for _, t := range l.transactions {
		if t.CategoryID == id {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	l.transactions = kept
	return removed
}

// RecordTransaction validates and appends a transaction. When a category is
// given its actual amount grows by the transaction amount.
func (l *Ledger) RecordTransaction(in NewTransaction) (Transaction, error) {
	amount, err := money.Parse(in.Amount)
	if err != nil {
		return Transaction{}, invalid("amount", in.Amount, err)
	}

	occurredOn := money.Today()
	if strings.TrimSpace(in.OccurredOn) != "" {
		occurredOn, err = money.NormalizeDate(in.OccurredOn)
		if err != nil {
			return Transaction{}, invalid("occurred on", in.OccurredOn, err)
		}
	}

	var category *Category
	if in.CategoryID != "" {
		c, ok := l.categories[in.CategoryID]
		if !ok {
			return Transaction{}, notFound("category", in.CategoryID)
		}
		category = c
	}

	id := in.ID
	if id == "" || l.hasTransaction(id) {
		id = newID()
	}

	t := Transaction{
		ID:           id,
		Description:  in.Description,
		Amount:       amount,
		OccurredOn:   occurredOn,
		CategoryID:   in.CategoryID,
		AccountID:    in.AccountID,
		AccountName:  in.AccountName,
		Counterparty: in.Counterparty,
		Reference:    in.Reference,
		Company:      in.Company,
	}
	l.transactions = append(l.transactions, t)
	if category != nil {
		category.Actual = category.Actual.Add(amount)
	}
	return t, nil
}

// RemoveTransaction deletes a transaction and recomputes every category
// total. It reports whether anything was removed.
func (l *Ledger) RemoveTransaction(id string) bool {
	for i, t := range l.transactions {
		if t.ID == id {
			l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
			l.RecomputeActuals()
			return true
		}
	}
	return false
}

// AssignCategory moves every listed transaction to the category. Ids that do
// not match a transaction are ignored as long as at least one does; when
// none match nothing changes and a NotFoundError is returned.
func (l *Ledger) AssignCategory(ids []string, categoryID string) (int, error) {
	if _, ok := l.categories[categoryID]; !ok {
		return 0, notFound("category", categoryID)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	matched := 0
	for _, t := range l.transactions {
		if wanted[t.ID] {
			matched++
		}
	}
	if matched == 0 {
		return 0, notFound("transaction", strings.Join(ids, ", "))
	}

	for i := range l.transactions {
		if wanted[l.transactions[i].ID] {
			l.transactions[i].CategoryID = categoryID
		}
	}
	l.RecomputeActuals()
	return matched, nil
}

// RecomputeActuals resets every actual amount and re-applies all
// transactions.
func (l *Ledger) RecomputeActuals() {
	for _, c := range l.categories {
		c.Actual = decimal.Zero
	}
	for _, t := range l.transactions {
		if c, ok := l.categories[t.CategoryID]; ok {
			c.Actual = c.Actual.Add(t.Amount)
		}
	}
}

// Categories returns copies of all categories in creation order.
func (l *Ledger) Categories() []Category {
	out := make([]Category, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.categories[id])
	}
	return out
}

// Category looks a category up by id.
func (l *Ledger) Category(id string) (Category, bool) {
	c, ok := l.categories[id]
	if !ok {
		return Category{}, false
	}
	return *c, true
}

// CategoryByName finds a category by case-insensitive name.
func (l *Ledger) CategoryByName(name string) (Category, bool) {
	for _, id := range l.order {
		if SameName(l.categories[id].Name, name) {
			return *l.categories[id], true
		}
	}
	return Category{}, false
}

// CategoryNames returns the names of all categories in creation order.
func (l *Ledger) CategoryNames() []string {
	names := make([]string, 0, len(l.order))
	for _, id := range l.order {
		names = append(names, l.categories[id].Name)
	}
	return names
}

// Transactions returns a copy of the transactions in entry order.
func (l *Ledger) Transactions() []Transaction {
	out := make([]Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Transaction looks a transaction up by id.
func (l *Ledger) Transaction(id string) (Transaction, bool) {
	for _, t := range l.transactions {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// Unassigned returns the transactions without a category in entry order.
func (l *Ledger) Unassigned() []Transaction {
	var out []Transaction
	for _, t := range l.transactions {
		if !t.Assigned() {
			out = append(out, t)
		}
	}
	return out
}

// IsUnassigned reports whether id names an existing unassigned transaction.
func (l *Ledger) IsUnassigned(id string) bool {
	t, ok := l.Transaction(id)
	return ok && !t.Assigned()
}

// References returns the set of non-empty transaction references.
func (l *Ledger) References() map[string]bool {
	refs := make(map[string]bool)
	for _, t := range l.transactions {
		if t.Reference != "" {
			refs[t.Reference] = true
		}
	}
	return refs
}

// Totals returns the planned and actual sums over all categories.
func (l *Ledger) Totals() (planned, actual decimal.Decimal) {
	planned, actual = decimal.Zero, decimal.Zero
	for _, c := range l.categories {
		planned = planned.Add(c.Planned)
		actual = actual.Add(c.Actual)
	}
	return planned, actual
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		categories:   make(map[string]*Category, len(l.categories)),
		order:        append([]string(nil), l.order...),
		transactions: append([]Transaction(nil), l.transactions...),
	}
	for id, c := range l.categories {
		cat := *c
		out.categories[id] = &cat
	}
	return out
}

func (l *Ledger) hasTransaction(id string) bool {
	_, ok := l.Transaction(id)
	return ok
}
