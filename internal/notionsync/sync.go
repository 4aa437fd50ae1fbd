// Package notionsync mirrors the ledger's transactions into a Notion
// database. Pages are matched to transactions by the Transaction ID
// property; the ledger is always the source of truth.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	queryPageSize = 100
)

// SyncResult counts what a sync did, or would do in a dry run.
type SyncResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// SyncLedger makes the database match l:
//  1. pages without a Transaction ID, for transactions no longer in the
//     ledger, or duplicating another page are archived;
//  2. pages whose description, amount or category drifted are updated;
//  3. transactions without a page get one.
//
// Failures on single pages are logged and counted, not returned.
func SyncLedger(ctx context.Context, l *domain.Ledger, svc NotionService, databaseID string, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var result SyncResult

	transactions := l.Transactions()
	log.Info().
		Int("transaction_count", len(transactions)).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	valid := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		valid[t.ID] = true
	}

	pages, err := queryAllNotionPages(ctx, svc, databaseID)
	if err != nil {
		return result, fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		_, duplicate := existing[txID]
		if txID != "" && valid[txID] && !duplicate {
			existing[txID] = page
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			result.Archived++
			continue
		}
		if err := svc.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			result.Failed++
			continue
		}
		result.Archived++
	}

	for i := 0; i < len(transactions); i += BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(i+BatchSize, len(transactions))
		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, t := range transactions[i:end] {
			syncTransaction(ctx, l, svc, databaseID, t, existing, dryRun, &result)
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Msg("Ledger sync completed")
	return result, nil
}

func syncTransaction(ctx context.Context, l *domain.Ledger, svc NotionService, databaseID string,
	t domain.Transaction, existing map[string]notionapi.Page, dryRun bool, result *SyncResult) {
	log := logger.FromContext(ctx)

	var categoryName string
	if c, ok := l.Category(t.CategoryID); ok {
		categoryName = c.Name
	}
	props := TransactionToNotionProperties(t, categoryName)

	page, ok := existing[t.ID]
	if !ok {
		if dryRun {
			log.Info().Str("transaction_id", t.ID).Msg("[DRY RUN] Would create new Notion page")
			result.Created++
			return
		}
		created, err := svc.CreatePage(ctx, databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("Failed to create Notion page")
			result.Failed++
			return
		}
		log.Debug().Str("transaction_id", t.ID).Str("page_id", string(created.ID)).Msg("Created Notion page")
		result.Created++
		return
	}

	if summarize(page.Properties) == summarize(props) {
		result.Unchanged++
		return
	}
	if dryRun {
		log.Info().
			Str("transaction_id", t.ID).
			Str("page_id", string(page.ID)).
			Msg("[DRY RUN] Would update existing Notion page")
		result.Updated++
		return
	}
	if _, err := svc.UpdatePage(ctx, string(page.ID), props); err != nil {
		log.Warn().Err(err).Str("transaction_id", t.ID).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
		result.Failed++
		return
	}
	result.Updated++
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
