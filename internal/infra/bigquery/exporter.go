// Package bigquery exports ledger snapshots to BigQuery. Each export appends
// every category and transaction, tagged with a shared export id, so the
// tables keep a history of snapshots.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultDataset    = "budget"
	CategoriesTable   = "categories"
	TransactionsTable = "transactions"
)

// Inserter streams rows into one table. *bigquery.Inserter satisfies it.
type Inserter interface {
	Put(ctx context.Context, src interface{}) error
}

// InserterFactory returns the inserter for a table name.
type InserterFactory func(table string) Inserter

// ExportResult describes one export.
type ExportResult struct {
	ExportID     string    `json:"export_id"`
	ExportedAt   time.Time `json:"exported_at"`
	Categories   int       `json:"categories"`
	Transactions int       `json:"transactions"`
}

// Exporter writes ledger snapshots into a dataset.
type Exporter struct {
	client    *bigquery.Client
	projectID string
	dataset   string
	inserter  InserterFactory
	now       func() time.Time
}

// NewExporter connects to BigQuery. An empty dataset means DefaultDataset.
func NewExporter(ctx context.Context, projectID, dataset string, opts ...option.ClientOption) (*Exporter, error) {
	if projectID == "" {
		return nil, errors.New("NewExporter: project id is required")
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}

	ds := client.DatasetInProject(projectID, dataset)
	return &Exporter{
		client:    client,
		projectID: projectID,
		dataset:   dataset,
		inserter:  func(table string) Inserter { return ds.Table(table).Inserter() },
		now:       time.Now,
	}, nil
}

// NewExporterWithInserter builds an exporter that writes through factory.
// Counting exported rows is unavailable on such an exporter.
func NewExporterWithInserter(factory InserterFactory) *Exporter {
	return &Exporter{dataset: DefaultDataset, inserter: factory, now: time.Now}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Export appends a snapshot of l. Categories and transactions are inserted
// concurrently; the first failure cancels the other insert.
func (e *Exporter) Export(ctx context.Context, l *domain.Ledger) (ExportResult, error) {
	result := ExportResult{ExportID: uuid.New().String(), ExportedAt: e.now().UTC()}

	categories := CategoryRows(l, result.ExportID, result.ExportedAt)
	transactions, err := TransactionRows(l, result.ExportID, result.ExportedAt)
	if err != nil {
		return ExportResult{}, fmt.Errorf("Export: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.put(gctx, CategoriesTable, categories, len(categories))
	})
	g.Go(func() error {
		return e.put(gctx, TransactionsTable, transactions, len(transactions))
	})
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	result.Categories = len(categories)
	result.Transactions = len(transactions)
	log := logger.FromContext(ctx)
	log.Info().
		Str("export_id", result.ExportID).
		Str("dataset", e.dataset).
		Int("categories", result.Categories).
		Int("transactions", result.Transactions).
		Msg("Ledger exported to BigQuery")
	return result, nil
}

func (e *Exporter) put(ctx context.Context, table string, rows interface{}, n int) error {
	if n == 0 {
		return nil
	}
	if err := e.inserter(table).Put(ctx, rows); err != nil {
		return fmt.Errorf("Export: inserting %s rows: %w", table, err)
	}
	return nil
}

// ExportedRows counts the rows an export wrote to table.
func (e *Exporter) ExportedRows(ctx context.Context, table, exportID string) (int64, error) {
	if e.client == nil {
		return 0, errors.New("ExportedRows: no BigQuery client")
	}
	q := e.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) AS n FROM `%s.%s.%s` WHERE export_id = @export_id",
		e.projectID, e.dataset, table,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "export_id", Value: exportID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("ExportedRows: query read: %w", err)
	}

	var count int64
	for {
		var r struct {
			N int64 `bigquery:"n"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("ExportedRows: iter next: %w", err)
		}
		count = r.N
	}
	return count, nil
}
