package bigquery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockInserter records what was Put.
type MockInserter struct {
	PutFunc func(ctx context.Context, src interface{}) error
}

func (m *MockInserter) Put(ctx context.Context, src interface{}) error {
	return m.PutFunc(ctx, src)
}

func sampleLedger(t *testing.T) *domain.Ledger {
	t.Helper()
	l := domain.NewLedger()
	food, err := l.AddCategory("Groceries", "250.50")
	require.NoError(t, err)
	_, err = l.RecordTransaction(domain.NewTransaction{
		Description: "Albert Heijn", Amount: "-35.40", OccurredOn: "2024-01-05",
		CategoryID: food.ID, AccountID: "NL01RABO", Reference: "REF-1",
	})
	require.NoError(t, err)
	_, err = l.RecordTransaction(domain.NewTransaction{Description: "Unknown", Amount: "-1", OccurredOn: "2024-01-06"})
	require.NoError(t, err)
	return l
}

func TestRows(t *testing.T) {
	l := sampleLedger(t)
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	cats := CategoryRows(l, "exp-1", at)
	require.Len(t, cats, 1)
	assert.Equal(t, "Groceries", cats[0].Name)
	assert.Equal(t, "501/2", cats[0].PlannedAmount.RatString())
	assert.Equal(t, "-177/5", cats[0].ActualAmount.RatString())

	txns, err := TransactionRows(l, "exp-1", at)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assigned := txns[0]
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 5}, assigned.TransactionDate)
	assert.Equal(t, "-177/5", assigned.Amount.RatString())
	assert.Equal(t, "Groceries", assigned.CategoryName.StringVal)
	assert.True(t, assigned.CategoryID.Valid)
	assert.Equal(t, "REF-1", assigned.ExternalReference.StringVal)
	assert.Equal(t, "exp-1", assigned.ExportID)

	loose := txns[1]
	assert.False(t, loose.CategoryID.Valid)
	assert.False(t, loose.CategoryName.Valid)
	assert.False(t, loose.AccountID.Valid)
}

func TestExporter_Export(t *testing.T) {
	var mu sync.Mutex
	got := map[string]interface{}{}
	exp := NewExporterWithInserter(func(table string) Inserter {
		return &MockInserter{PutFunc: func(_ context.Context, src interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			got[table] = src
			return nil
		}}
	})

	res, err := exp.Export(context.Background(), sampleLedger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Categories)
	assert.Equal(t, 2, res.Transactions)
	assert.NotEmpty(t, res.ExportID)

	cats, ok := got[CategoriesTable].([]*CategoryRow)
	require.True(t, ok)
	txns, ok := got[TransactionsTable].([]*TransactionRow)
	require.True(t, ok)
	assert.Equal(t, res.ExportID, cats[0].ExportID)
	assert.Equal(t, res.ExportID, txns[1].ExportID)
}

func TestExporter_ExportEmptyLedgerInsertsNothing(t *testing.T) {
	exp := NewExporterWithInserter(func(string) Inserter {
		return &MockInserter{PutFunc: func(context.Context, interface{}) error {
			t.Fatal("no rows should be inserted")
			return nil
		}}
	})
	res, err := exp.Export(context.Background(), domain.NewLedger())
	require.NoError(t, err)
	assert.Zero(t, res.Categories)
	assert.Zero(t, res.Transactions)
}

func TestExporter_ExportFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	exp := NewExporterWithInserter(func(table string) Inserter {
		return &MockInserter{PutFunc: func(context.Context, interface{}) error {
			if table == TransactionsTable {
				return boom
			}
			return nil
		}}
	})
	_, err := exp.Export(context.Background(), sampleLedger(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "inserting transactions rows")

	_, err = exp.ExportedRows(context.Background(), TransactionsTable, "x")
	assert.Error(t, err)
}
