// Package pipeline imports bank CSV exports into a ledger. An import runs a
// fixed sequence of steps over an ImportState: fetch the bytes, parse them,
// resolve target categories, drop rows already imported and commit the rest.
//
// Steps mutate ImportState.Ledger. Callers pass a clone and keep it only
// when the whole pipeline succeeds.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/csvimport"
	"github.com/dvloznov/budget-ledger/internal/domain"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *ImportState) error
}

// ImportOptions tune how rows land in the ledger.
type ImportOptions struct {
	// CategoryByAccount assigns rows of an account (IBAN/BBAN) to a
	// category id.
	CategoryByAccount map[string]string `json:"category_by_account,omitempty"`

	// DefaultCategoryID is used for accounts not in CategoryByAccount.
	// Empty leaves such rows unassigned.
	DefaultCategoryID string `json:"default_category_id,omitempty"`

	// SkipExisting drops rows whose reference is already in the ledger or
	// earlier in the same file.
	SkipExisting bool `json:"skip_existing"`
}

// DefaultImportOptions skips rows that were imported before.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{SkipExisting: true}
}

// ImportState holds the shared state across all pipeline steps.
type ImportState struct {
	// Source is a local path or gs:// URI. Ignored when Data is preset.
	Source  string
	Data    []byte
	Options ImportOptions
	Ledger  *domain.Ledger

	Records  []csvimport.Record
	Pending  []domain.NewTransaction
	Imported []domain.Transaction
	Skipped  int
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the
// first failure.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	if state.Ledger == nil {
		return fmt.Errorf("pipeline: import state has no ledger")
	}
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewImportPipeline creates the standard five-step CSV import pipeline.
func NewImportPipeline(fetcher Fetcher) *Pipeline {
	return NewPipeline(
		&FetchStep{Fetcher: fetcher},
		&ParseCSVStep{},
		&ResolveCategoriesStep{},
		&DedupeStep{},
		&CommitStep{},
	)
}
