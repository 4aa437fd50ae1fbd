package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/budget-ledger/internal/app"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/rs/zerolog"
)

type command struct {
	name    string
	summary string
	run     func(env *env, args []string)
}

var commands = []command{
	{"categories", "List categories with planned, actual and difference", runCategories},
	{"transactions", "List transactions", runTransactions},
	{"totals", "Show planned, actual and remaining totals", runTotals},
	{"add-category", "Create a category", runAddCategory},
	{"update-category", "Rename a category or change its plan", runUpdateCategory},
	{"delete-category", "Delete a category and its transactions", runDeleteCategory},
	{"add", "Record a transaction", runAddTransaction},
	{"delete", "Delete a transaction", runDeleteTransaction},
	{"assign", "Assign transactions to a category", runAssign},
	{"import", "Import a Rabobank CSV export (local path or gs:// URI)", runImport},
	{"classify", "Suggest categories for unassigned transactions", runClassify},
	{"accept", "Assign a transaction to a suggested or named category", runAccept},
	{"export-bq", "Export a ledger snapshot to BigQuery", runExportBigQuery},
	{"sync-notion", "Mirror transactions into a Notion database", runSyncNotion},
	{"upload", "Upload a file to Cloud Storage", runUpload},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		printUsage()
		return
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			c.run(&env{name: c.name}, os.Args[2:])
			return
		}
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Budget Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-16s %s\n", c.name, c.summary)
	}
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env carries what every command needs once its flags are parsed.
type env struct {
	name       string
	configPath *string
	cfg        *config.Config
	log        zerolog.Logger
	app        *app.App
}

// flags returns a flag set with the shared -config flag.
func (e *env) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(e.name, flag.ExitOnError)
	e.configPath = fs.String("config", "config.toml", "Path to a TOML config file")
	return fs
}

// open parses args, loads configuration and the ledger. The returned
// context carries the logger and is cancelled after timeout.
func (e *env) open(fs *flag.FlagSet, args []string, timeout time.Duration) (context.Context, context.CancelFunc) {
	fs.Parse(args)

	cfg, err := config.Load(*e.configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	e.cfg = cfg
	e.log = logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, e.log)

	a, err := app.New(ctx, cfg, e.log)
	if err != nil {
		cancel()
		e.log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	e.app = a
	return ctx, func() {
		if err := a.Close(ctx); err != nil {
			e.log.Warn().Err(err).Msg("Failed to close cleanly")
		}
		cancel()
	}
}

// save persists the ledger after a mutating command.
func (e *env) save(ctx context.Context) {
	if err := e.app.Service.Save(ctx); err != nil {
		e.log.Fatal().Err(err).Msg("Failed to save ledger")
	}
}
