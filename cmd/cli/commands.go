package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/budget-ledger/internal/classifier"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/infra/bigquery"
	"github.com/dvloznov/budget-ledger/internal/notionsync"
)

const defaultTimeout = 5 * time.Minute

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func runCategories(e *env, args []string) {
	_, done := e.open(e.flags(), args, defaultTimeout)
	defer done()

	w := table()
	fmt.Fprintln(w, "ID\tNAME\tPLANNED\tACTUAL\tDIFFERENCE")
	for _, c := range e.app.Service.CategoriesForDisplay() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Planned, c.Actual, c.Difference)
	}
	w.Flush()
}

func runTransactions(e *env, args []string) {
	fs := e.flags()
	unassigned := fs.Bool("unassigned", false, "Only list transactions without a category")
	_, done := e.open(fs, args, defaultTimeout)
	defer done()

	w := table()
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCATEGORY\tACCOUNT\tCOMPANY\tDESCRIPTION\tSUGGESTION")
	for _, t := range e.app.Service.TransactionsForDisplay() {
		if *unassigned && t.CategoryID != "" {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.OccurredOn, t.Amount, t.Category, t.Account, t.Company, t.Description, t.Suggestion)
	}
	w.Flush()
}

func runTotals(e *env, args []string) {
	_, done := e.open(e.flags(), args, defaultTimeout)
	defer done()

	totals := e.app.Service.Totals()
	fmt.Printf("Planned:   %s\nActual:    %s\nRemaining: %s\n", totals.Planned, totals.Actual, totals.Remaining)
}

func runAddCategory(e *env, args []string) {
	fs := e.flags()
	name := fs.String("name", "", "Category name (required)")
	planned := fs.String("planned", "0", "Planned amount")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	c, err := e.app.Service.AddCategory(*name, *planned)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to add category")
	}
	e.save(ctx)
	fmt.Printf("Created category %s (%s)\n", c.Name, c.ID)
}

func runUpdateCategory(e *env, args []string) {
	fs := e.flags()
	id := fs.String("id", "", "Category ID (required)")
	name := fs.String("name", "", "New name")
	planned := fs.String("planned", "", "New planned amount")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	var upd domain.CategoryUpdate
	if *name != "" {
		upd.Name = name
	}
	if *planned != "" {
		upd.Planned = planned
	}
	c, err := e.app.Service.UpdateCategory(*id, upd)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to update category")
	}
	e.save(ctx)
	fmt.Printf("Updated category %s (%s)\n", c.Name, c.ID)
}

func runDeleteCategory(e *env, args []string) {
	fs := e.flags()
	id := fs.String("id", "", "Category ID (required)")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	removed, found := e.app.Service.DeleteCategory(*id)
	if !found {
		e.log.Fatal().Str("category_id", *id).Msg("Unknown category")
	}
	e.save(ctx)
	fmt.Printf("Deleted category %s and %d transaction(s)\n", *id, removed)
}

func runAddTransaction(e *env, args []string) {
	fs := e.flags()
	description := fs.String("description", "", "Description")
	amount := fs.String("amount", "", "Amount, negative for expenses (required)")
	date := fs.String("date", "", "Date in YYYY-MM-DD format (defaults to today)")
	category := fs.String("category", "", "Category ID")
	account := fs.String("account", "", "Account ID")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	t, err := e.app.Service.AddTransaction(domain.NewTransaction{
		Description: *description,
		Amount:      *amount,
		OccurredOn:  *date,
		CategoryID:  *category,
		AccountID:   *account,
	})
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to add transaction")
	}
	e.save(ctx)
	fmt.Printf("Recorded transaction %s\n", t.ID)
}

func runDeleteTransaction(e *env, args []string) {
	fs := e.flags()
	id := fs.String("id", "", "Transaction ID (required)")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	if !e.app.Service.DeleteTransaction(*id) {
		e.log.Fatal().Str("transaction_id", *id).Msg("Unknown transaction")
	}
	e.save(ctx)
	fmt.Printf("Deleted transaction %s\n", *id)
}

func runAssign(e *env, args []string) {
	fs := e.flags()
	category := fs.String("category", "", "Category ID (required)")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	n, err := e.app.Service.AssignCategory(fs.Args(), *category)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to assign transactions")
	}
	e.save(ctx)
	fmt.Printf("Assigned %d transaction(s)\n", n)
}

func runImport(e *env, args []string) {
	fs := e.flags()
	source := fs.String("file", "", "Local path or gs:// URI of the CSV export (required)")
	defaultCategory := fs.String("default-category", "", "Category ID for rows of unmapped accounts")
	keepDuplicates := fs.Bool("keep-duplicates", false, "Import rows whose reference is already known")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	if *source == "" {
		e.log.Fatal().Msg("Error: --file is required")
	}
	opts := e.app.Service.ImportDefaults()
	if *defaultCategory != "" {
		opts.DefaultCategoryID = *defaultCategory
	}
	if *keepDuplicates {
		opts.SkipExisting = false
	}

	result, err := e.app.Service.ImportCSV(ctx, *source, nil, opts)
	if err != nil {
		e.log.Fatal().Err(err).Str("source", *source).Msg("Import failed")
	}
	e.save(ctx)
	fmt.Printf("Imported %d transaction(s), skipped %d\n", result.Imported, result.Skipped)
}

func runClassify(e *env, args []string) {
	fs := e.flags()
	acceptAll := fs.Bool("accept", false, "Accept every suggestion")
	verbose := fs.Bool("v", false, "Print the classification log")
	ctx, done := e.open(fs, args, 30*time.Minute)
	defer done()

	svc := e.app.Service
	suggestions, err := svc.SuggestUnassigned(ctx, func(txnID string, r classifier.Result) {
		e.log.Debug().Str("transaction_id", txnID).Str("category", r.Category).Msg("Suggestion")
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("Classification stopped early")
	}
	if *verbose {
		for _, line := range svc.AILog() {
			fmt.Fprintln(os.Stderr, line)
		}
	}

	w := table()
	fmt.Fprintln(w, "ID\tDESCRIPTION\tSUGGESTION")
	for _, v := range svc.Suggestions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.TransactionID, v.Description, v.Display)
	}
	w.Flush()

	if !*acceptAll {
		return
	}
	ids := make([]string, 0, len(suggestions))
	for id := range suggestions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := svc.AcceptSuggestion(id, ""); err != nil {
			e.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to accept suggestion")
		}
	}
	e.save(ctx)
	fmt.Printf("Accepted %d suggestion(s)\n", len(ids))
}

func runAccept(e *env, args []string) {
	fs := e.flags()
	txnID := fs.String("txn", "", "Transaction ID (required)")
	category := fs.String("category", "", "Category name (defaults to a fresh suggestion)")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	svc := e.app.Service
	name := strings.TrimSpace(*category)
	if name == "" {
		r, err := svc.Suggest(ctx, *txnID)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to classify transaction")
		}
		if r == nil {
			e.log.Fatal().Str("transaction_id", *txnID).Msg("No suggestion available; pass --category")
		}
		name = r.Category
	}

	created, err := svc.AcceptSuggestion(*txnID, name)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to accept suggestion")
	}
	e.save(ctx)
	if created {
		fmt.Printf("Created category %s\n", name)
	}
	fmt.Printf("Assigned %s to %s\n", *txnID, name)
}

func runExportBigQuery(e *env, args []string) {
	fs := e.flags()
	project := fs.String("project", "", "GCP project ID (overrides config)")
	dataset := fs.String("dataset", "", "BigQuery dataset (overrides config)")
	verify := fs.Bool("verify", false, "Count the exported rows in BigQuery afterwards")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	if *project == "" {
		*project = e.cfg.BigQuery.ProjectID
	}
	if *dataset == "" {
		*dataset = e.cfg.BigQuery.Dataset
	}

	exporter, err := bigquery.NewExporter(ctx, *project, *dataset)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to initialize BigQuery exporter")
	}
	defer exporter.Close()

	result, err := exporter.Export(ctx, e.app.Service.Ledger())
	if err != nil {
		e.log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Exported %d categories and %d transactions as %s\n",
		result.Categories, result.Transactions, result.ExportID)

	if !*verify {
		return
	}
	for _, table := range []string{bigquery.CategoriesTable, bigquery.TransactionsTable} {
		n, err := exporter.ExportedRows(ctx, table, result.ExportID)
		if err != nil {
			e.log.Fatal().Err(err).Str("table", table).Msg("Verification failed")
		}
		fmt.Printf("  %s: %d rows\n", table, n)
	}
}

func runSyncNotion(e *env, args []string) {
	fs := e.flags()
	token := fs.String("notion-token", "", "Notion API token (overrides config)")
	dbID := fs.String("notion-db-id", "", "Notion database ID (overrides config)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	ctx, done := e.open(fs, args, 10*time.Minute)
	defer done()

	if *token == "" {
		*token = e.cfg.Notion.Token
	}
	if *dbID == "" {
		*dbID = e.cfg.Notion.DatabaseID
	}
	if *token == "" || *dbID == "" {
		e.log.Fatal().Msg("Error: a Notion token and database ID are required")
	}

	result, err := notionsync.SyncLedger(ctx, e.app.Service.Ledger(), notionsync.NewNotionClient(*token), *dbID, *dryRun)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Sync failed")
	}
	fmt.Printf("Created %d, updated %d, unchanged %d, archived %d, failed %d\n",
		result.Created, result.Updated, result.Unchanged, result.Archived, result.Failed)
}

func runUpload(e *env, args []string) {
	fs := e.flags()
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file")
	ctx, done := e.open(fs, args, defaultTimeout)
	defer done()

	if *bucketName == "" || *filePath == "" {
		e.log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	e.log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := e.app.Storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		e.log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
