package notionsync

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockNotionService is a NotionService driven by XxxFunc fields. Nil funcs
// fail the test when called.
type MockNotionService struct {
	t                 *testing.T
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc == nil {
		m.t.Fatalf("unexpected CreatePage")
	}
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.UpdatePageFunc == nil {
		m.t.Fatalf("unexpected UpdatePage %s", pageID)
	}
	return m.UpdatePageFunc(ctx, pageID, properties)
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, req)
}

func (m *MockNotionService) DeletePage(ctx context.Context, pageID string) error {
	if m.DeletePageFunc == nil {
		m.t.Fatalf("unexpected DeletePage %s", pageID)
	}
	return m.DeletePageFunc(ctx, pageID)
}

func ledgerWithTransactions(t *testing.T) (*domain.Ledger, domain.Transaction, domain.Transaction) {
	t.Helper()
	l := domain.NewLedger()
	food, err := l.AddCategory("Groceries", "100")
	require.NoError(t, err)
	assigned, err := l.RecordTransaction(domain.NewTransaction{
		ID: "REF-1", Description: "Albert Heijn", Amount: "-35.40", OccurredOn: "2024-01-05",
		CategoryID: food.ID, AccountID: "NL01RABO", Reference: "REF-1",
	})
	require.NoError(t, err)
	loose, err := l.RecordTransaction(domain.NewTransaction{ID: "REF-2", Description: "Bakker", Amount: "-4.20", OccurredOn: "2024-01-06"})
	require.NoError(t, err)
	return l, assigned, loose
}

// pageFor builds a page the way the API returns it, with pointer properties.
func pageFor(id string, t domain.Transaction, category string) notionapi.Page {
	props := notionapi.Properties{}
	for name, p := range TransactionToNotionProperties(t, category) {
		switch v := p.(type) {
		case notionapi.TitleProperty:
			props[name] = &v
		case notionapi.RichTextProperty:
			props[name] = &v
		case notionapi.SelectProperty:
			props[name] = &v
		case notionapi.NumberProperty:
			props[name] = &v
		default:
			props[name] = p
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func singlePage(pages ...notionapi.Page) func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		return &notionapi.DatabaseQueryResponse{Results: pages}, nil
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	_, assigned, loose := ledgerWithTransactions(t)

	props := TransactionToNotionProperties(assigned, "Groceries")
	assert.Equal(t, "Albert Heijn", plainText(props[PropDescription]))
	assert.Equal(t, "REF-1", plainText(props[PropTransactionID]))
	assert.Equal(t, "Groceries", plainText(props[PropCategory]))
	assert.Equal(t, "NL01RABO", plainText(props[PropAccount]))
	assert.Equal(t, -35.40, props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Contains(t, props, PropDate)

	props = TransactionToNotionProperties(loose, "")
	assert.Equal(t, UnassignedCategory, plainText(props[PropCategory]))
	assert.NotContains(t, props, PropAccount)
	assert.NotContains(t, props, PropCounterparty)
}

func TestSyncLedger_CreatesUpdatesAndArchives(t *testing.T) {
	l, assigned, loose := ledgerWithTransactions(t)

	var created []string
	var updated, archived []string
	svc := &MockNotionService{
		t: t,
		QueryDatabaseFunc: singlePage(
			pageFor("page-1", assigned, "Groceries"),
			pageFor("page-gone", domain.Transaction{ID: "REF-OLD", Description: "Old"}, ""),
			pageFor("page-dup", assigned, "Groceries"),
			notionapi.Page{ID: "page-legacy", Properties: notionapi.Properties{}},
		),
		CreatePageFunc: func(_ context.Context, dbID string, props notionapi.Properties) (*notionapi.Page, error) {
			assert.Equal(t, "db-1", dbID)
			created = append(created, plainText(props[PropTransactionID]))
			return &notionapi.Page{ID: "page-new"}, nil
		},
		DeletePageFunc: func(_ context.Context, pageID string) error {
			archived = append(archived, pageID)
			return nil
		},
		UpdatePageFunc: func(_ context.Context, pageID string, _ notionapi.Properties) (*notionapi.Page, error) {
			updated = append(updated, pageID)
			return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
		},
	}

	res, err := SyncLedger(context.Background(), l, svc, "db-1", false)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Unchanged: 1, Archived: 3}, res)
	assert.Equal(t, []string{loose.ID}, created)
	assert.ElementsMatch(t, []string{"page-gone", "page-dup", "page-legacy"}, archived)
	assert.Empty(t, updated)
}

func TestSyncLedger_UpdatesDriftedPages(t *testing.T) {
	l, assigned, loose := ledgerWithTransactions(t)

	var updated []string
	svc := &MockNotionService{
		t: t,
		QueryDatabaseFunc: singlePage(
			pageFor("page-1", assigned, "Shopping"),
			pageFor("page-2", loose, ""),
		),
		UpdatePageFunc: func(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
			updated = append(updated, pageID)
			assert.Equal(t, "Groceries", plainText(props[PropCategory]))
			return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
		},
	}

	res, err := SyncLedger(context.Background(), l, svc, "db-1", false)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Updated: 1, Unchanged: 1}, res)
	assert.Equal(t, []string{"page-1"}, updated)
}

func TestSyncLedger_DryRunChangesNothing(t *testing.T) {
	l, assigned, _ := ledgerWithTransactions(t)
	svc := &MockNotionService{
		t: t,
		QueryDatabaseFunc: singlePage(
			pageFor("page-1", assigned, "Shopping"),
			pageFor("page-gone", domain.Transaction{ID: "REF-OLD"}, ""),
		),
	}

	res, err := SyncLedger(context.Background(), l, svc, "db-1", true)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Updated: 1, Archived: 1}, res)
}

func TestSyncLedger_FailuresAreCounted(t *testing.T) {
	l, _, _ := ledgerWithTransactions(t)
	svc := &MockNotionService{
		t:                 t,
		QueryDatabaseFunc: singlePage(),
		CreatePageFunc: func(_ context.Context, _ string, props notionapi.Properties) (*notionapi.Page, error) {
			if plainText(props[PropTransactionID]) == "REF-1" {
				return nil, errors.New("rate limited")
			}
			return &notionapi.Page{ID: "page-new"}, nil
		},
	}

	res, err := SyncLedger(context.Background(), l, svc, "db-1", false)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Failed: 1}, res)
}

func TestSyncLedger_QueryFailure(t *testing.T) {
	l, _, _ := ledgerWithTransactions(t)
	boom := errors.New("unauthorized")
	svc := &MockNotionService{
		t: t,
		QueryDatabaseFunc: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, boom
		},
	}

	_, err := SyncLedger(context.Background(), l, svc, "db-1", false)
	assert.True(t, errors.Is(err, boom))
}

func TestQueryAllNotionPages_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	svc := &MockNotionService{
		t: t,
		QueryDatabaseFunc: func(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{{ID: "a"}, {ID: "b"}},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "c"}}}, nil
		},
	}

	pages, err := queryAllNotionPages(context.Background(), svc, "db-1")
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
}
