package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/gcs"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/notionsync"
	"github.com/dvloznov/budget-ledger/internal/store"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	configPath := flag.String("config", "config.toml", "Path to a TOML config file")
	notionToken := flag.String("notion-token", "", "Notion API token (or [notion] token / NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (or [notion] database_id)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *notionToken == "" {
		*notionToken = cfg.Notion.Token
	}
	if *notionDBID == "" {
		*notionDBID = cfg.Notion.DatabaseID
	}

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	var storage gcs.StorageService
	if cfg.Storage.Backend == store.BackendGCS {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
		defer client.Close()
		storage = client
	}

	ledgerStore, err := store.New(store.Options{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		GCSURI:  cfg.Storage.GCSURI,
	}, storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid storage configuration")
	}

	ledger, err := ledgerStore.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	result, err := notionsync.SyncLedger(ctx, ledger, notionClient, *notionDBID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed successfully: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}
