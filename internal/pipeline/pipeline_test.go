package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/csvimport"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a Fetcher driven by FetchFunc.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, source string) ([]byte, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	return m.FetchFunc(ctx, source)
}

// MockStorageService implements gcs.StorageService.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) UploadFile(context.Context, string, string, string) error {
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

func (m *MockStorageService) WriteToGCS(context.Context, string, []byte, string) error {
	return nil
}

var header = []string{"IBAN/BBAN", "Volgnr", "Datum", "Bedrag", "Naam tegenpartij", "Transactiereferentie", "Omschrijving-1"}

func export(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(rows))
	return buf.Bytes()
}

func sampleExport(t *testing.T) []byte {
	return export(t,
		[]string{"NL01RABO", "1", "2024-01-05", "-35,40", "Albert Heijn", "REF-1", "Boodschappen"},
		[]string{"NL02RABO", "2", "2024-01-06", "2.500,00", "Werkgever BV", "REF-2", "Salaris"},
		[]string{"NL01RABO", "", "2024-01-07", "-4,20", "Bakker", "", "Brood"},
	)
}

func run(t *testing.T, ledger *domain.Ledger, data []byte, opts ImportOptions) (*ImportState, error) {
	t.Helper()
	state := &ImportState{Source: "test.csv", Data: data, Options: opts, Ledger: ledger}
	return state, NewImportPipeline(&MockFetcher{FetchFunc: func(context.Context, string) ([]byte, error) {
		t.Fatal("fetcher must not be called when data is supplied")
		return nil, nil
	}}).Execute(context.Background(), state)
}

func TestImportPipeline_Basic(t *testing.T) {
	ledger := domain.NewLedger()
	state, err := run(t, ledger, sampleExport(t), DefaultImportOptions())
	require.NoError(t, err)

	require.Len(t, state.Imported, 3)
	assert.Equal(t, "REF-1", state.Imported[0].ID, "reference reused as id")
	assert.Len(t, state.Imported[2].ID, 32)
	assert.True(t, state.Imported[1].Amount.Equal(decimal.RequireFromString("2500")))
	assert.Len(t, ledger.Unassigned(), 3)
}

func TestImportPipeline_Idempotent(t *testing.T) {
	ledger := domain.NewLedger()
	_, err := run(t, ledger, sampleExport(t), DefaultImportOptions())
	require.NoError(t, err)

	state, err := run(t, ledger, sampleExport(t), DefaultImportOptions())
	require.NoError(t, err)
	assert.Len(t, state.Imported, 1, "only the row without a reference is imported again")
	assert.Equal(t, 2, state.Skipped)
	assert.Len(t, ledger.Transactions(), 4)
}

func TestImportPipeline_DuplicateReferenceInFile(t *testing.T) {
	data := export(t,
		[]string{"NL01RABO", "1", "2024-01-05", "-1,00", "A", "REF-1", "x"},
		[]string{"NL01RABO", "2", "2024-01-05", "-1,00", "A", "REF-1", "x"},
	)

	state, err := run(t, domain.NewLedger(), data, DefaultImportOptions())
	require.NoError(t, err)
	assert.Len(t, state.Imported, 1)

	ledger := domain.NewLedger()
	state, err = run(t, ledger, data, ImportOptions{SkipExisting: false})
	require.NoError(t, err)
	require.Len(t, state.Imported, 2)
	assert.NotEqual(t, state.Imported[0].ID, state.Imported[1].ID, "a taken id is replaced")
}

func TestImportPipeline_CategoryOptions(t *testing.T) {
	ledger := domain.NewLedger()
	groceries, err := ledger.AddCategory("Groceries", "300")
	require.NoError(t, err)
	income, err := ledger.AddCategory("Income", "0")
	require.NoError(t, err)

	_, err = run(t, ledger, sampleExport(t), ImportOptions{
		CategoryByAccount: map[string]string{"NL02RABO": income.ID},
		DefaultCategoryID: groceries.ID,
		SkipExisting:      true,
	})
	require.NoError(t, err)

	g, _ := ledger.Category(groceries.ID)
	assert.True(t, g.Actual.Equal(decimal.RequireFromString("-39.60")), "actual %s", g.Actual)
	i, _ := ledger.Category(income.ID)
	assert.True(t, i.Actual.Equal(decimal.RequireFromString("2500")))
	assert.Empty(t, ledger.Unassigned())
}

func TestImportPipeline_UnknownCategoryOption(t *testing.T) {
	ledger := domain.NewLedger()
	_, err := run(t, ledger, sampleExport(t), ImportOptions{DefaultCategoryID: "nope", SkipExisting: true})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "pipeline step 3 (resolve categories) failed")
	assert.Empty(t, ledger.Transactions())
}

func TestImportPipeline_BadRowAbortsBeforeCommit(t *testing.T) {
	data := export(t,
		[]string{"NL01RABO", "1", "2024-01-05", "-1,00", "A", "REF-1", "x"},
		[]string{"NL01RABO", "2", "someday", "-1,00", "A", "REF-2", "x"},
	)
	ledger := domain.NewLedger()
	_, err := run(t, ledger, data, DefaultImportOptions())

	var ierr *csvimport.ImportError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 3, ierr.Line)
	assert.Empty(t, ledger.Transactions())
}

func TestImportPipeline_RequiresLedger(t *testing.T) {
	err := NewImportPipeline(nil).Execute(context.Background(), &ImportState{})
	assert.Error(t, err)
}

func TestImportPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := &ImportState{Data: sampleExport(t), Ledger: domain.NewLedger(), Options: DefaultImportOptions()}

	err := NewImportPipeline(nil).Execute(ctx, state)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, state.Ledger.Transactions())
}

func TestFetchStep_UsesFetcher(t *testing.T) {
	var got string
	fetcher := &MockFetcher{FetchFunc: func(_ context.Context, source string) ([]byte, error) {
		got = source
		return sampleExport(t), nil
	}}
	state := &ImportState{Source: "gs://bucket/export.csv", Ledger: domain.NewLedger(), Options: DefaultImportOptions()}

	require.NoError(t, NewImportPipeline(fetcher).Execute(context.Background(), state))
	assert.Equal(t, "gs://bucket/export.csv", got)
	assert.Len(t, state.Imported, 3)
}

func TestSourceFetcher(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	t.Run("local file", func(t *testing.T) {
		data, err := NewSourceFetcher(nil).Fetch(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSourceFetcher(nil).Fetch(ctx, filepath.Join(t.TempDir(), "nope.csv"))
		assert.True(t, errors.Is(err, csvimport.ErrImport))
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := NewSourceFetcher(nil).Fetch(ctx, "")
		assert.True(t, errors.Is(err, csvimport.ErrImport))
	})

	t.Run("import directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "jan.csv"), []byte("jan"), 0o600))
		fetcher := NewSourceFetcher(nil, WithImportDir(dir))

		data, err := fetcher.Fetch(ctx, "jan.csv")
		require.NoError(t, err)
		assert.Equal(t, []byte("jan"), data)

		data, err = fetcher.Fetch(ctx, filepath.Join(dir, "jan.csv"))
		require.NoError(t, err)
		assert.Equal(t, []byte("jan"), data)

		for _, outside := range []string{path, "../export.csv", filepath.Join(dir, "..", "x.csv")} {
			_, err = fetcher.Fetch(ctx, outside)
			assert.True(t, errors.Is(err, csvimport.ErrImport), outside)
		}
	})

	t.Run("gcs without storage", func(t *testing.T) {
		_, err := NewSourceFetcher(nil).Fetch(ctx, "gs://bucket/export.csv")
		assert.True(t, errors.Is(err, csvimport.ErrImport))
	})

	t.Run("gcs", func(t *testing.T) {
		storage := &MockStorageService{FetchFromGCSFunc: func(_ context.Context, uri string) ([]byte, error) {
			assert.Equal(t, "gs://bucket/export.csv", uri)
			return []byte("remote"), nil
		}}
		data, err := NewSourceFetcher(storage).Fetch(ctx, "gs://bucket/export.csv")
		require.NoError(t, err)
		assert.Equal(t, []byte("remote"), data)
	})

	t.Run("gcs failure", func(t *testing.T) {
		storage := &MockStorageService{FetchFromGCSFunc: func(context.Context, string) ([]byte, error) {
			return nil, errors.New("permission denied")
		}}
		_, err := NewSourceFetcher(storage).Fetch(ctx, "gs://bucket/export.csv")
		assert.True(t, errors.Is(err, csvimport.ErrImport))
		assert.Contains(t, err.Error(), "permission denied")
	})
}
