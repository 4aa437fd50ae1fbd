package pipeline

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/csvimport"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
)

// Step 1: FetchStep loads the export bytes unless the caller supplied them.
type FetchStep struct {
	Fetcher Fetcher
}

func (s *FetchStep) Name() string { return "fetch" }

func (s *FetchStep) Execute(ctx context.Context, state *ImportState) error {
	if state.Data != nil {
		return nil
	}
	data, err := s.Fetcher.Fetch(ctx, state.Source)
	if err != nil {
		return err
	}
	state.Data = data
	return nil
}

// Step 2: ParseCSVStep turns the bytes into normalised records.
type ParseCSVStep struct{}

func (s *ParseCSVStep) Name() string { return "parse" }

func (s *ParseCSVStep) Execute(ctx context.Context, state *ImportState) error {
	records, err := csvimport.ParseBytes(state.Data)
	if err != nil {
		return err
	}
	state.Records = records
	log := logger.FromContext(ctx)
	log.Debug().
		Str("source", state.Source).
		Int("records", len(records)).
		Msg("Parsed CSV export")
	return nil
}

// Step 3: ResolveCategoriesStep checks the configured category ids and
// builds one pending transaction per record.
type ResolveCategoriesStep struct{}

func (s *ResolveCategoriesStep) Name() string { return "resolve categories" }

func (s *ResolveCategoriesStep) Execute(_ context.Context, state *ImportState) error {
	opts := state.Options
	if opts.DefaultCategoryID != "" {
		if _, ok := state.Ledger.Category(opts.DefaultCategoryID); !ok {
			return &domain.NotFoundError{Kind: "category", ID: opts.DefaultCategoryID}
		}
	}
	for _, id := range opts.CategoryByAccount {
		if _, ok := state.Ledger.Category(id); !ok {
			return &domain.NotFoundError{Kind: "category", ID: id}
		}
	}

	state.Pending = make([]domain.NewTransaction, 0, len(state.Records))
	for _, rec := range state.Records {
		categoryID, ok := opts.CategoryByAccount[rec.AccountID]
		if !ok {
			categoryID = opts.DefaultCategoryID
		}
		state.Pending = append(state.Pending, domain.NewTransaction{
			ID:           rec.Reference,
			Description:  rec.Description,
			Amount:       rec.Amount.String(),
			OccurredOn:   rec.OccurredOn,
			CategoryID:   categoryID,
			AccountID:    rec.AccountID,
			AccountName:  rec.AccountName,
			Counterparty: rec.Counterparty,
			Reference:    rec.Reference,
			Company:      rec.Company,
		})
	}
	return nil
}

// Step 4: DedupeStep drops rows whose reference was seen before, in the
// ledger or earlier in the file.
type DedupeStep struct{}

func (s *DedupeStep) Name() string { return "dedupe" }

func (s *DedupeStep) Execute(_ context.Context, state *ImportState) error {
	if !state.Options.SkipExisting {
		return nil
	}
	seen := state.Ledger.References()
	kept := state.Pending[:0]
	for _, p := range state.Pending {
		if p.Reference != "" && seen[p.Reference] {
			state.Skipped++
			continue
		}
		if p.Reference != "" {
			seen[p.Reference] = true
		}
		kept = append(kept, p)
	}
	state.Pending = kept
	return nil
}

// Step 5: CommitStep records the pending transactions through the ledger.
type CommitStep struct{}

func (s *CommitStep) Name() string { return "commit" }

func (s *CommitStep) Execute(ctx context.Context, state *ImportState) error {
	for _, p := range state.Pending {
		txn, err := state.Ledger.RecordTransaction(p)
		if err != nil {
			return err
		}
		state.Imported = append(state.Imported, txn)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("source", state.Source).
		Int("imported", len(state.Imported)).
		Int("skipped", state.Skipped).
		Msg("Imported transactions")
	return nil
}
