package budget

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
)

// AddCategory creates a category.
func (s *Service) AddCategory(name, planned string) (domain.Category, error) {
	var c domain.Category
	err := s.mutate(func(l *domain.Ledger) error {
		var err error
		c, err = l.AddCategory(name, planned)
		return err
	})
	return c, err
}

// UpdateCategory renames a category or changes its planned amount.
func (s *Service) UpdateCategory(id string, upd domain.CategoryUpdate) (domain.Category, error) {
	var c domain.Category
	err := s.mutate(func(l *domain.Ledger) error {
		var err error
		c, err = l.UpdateCategory(id, upd)
		return err
	})
	if err == nil && upd.Name != nil {
		s.engine.Memory().Reset()
	}
	return c, err
}

// DeleteCategory removes a category and every transaction assigned to it.
// It returns how many transactions went with it and whether the category
// existed; an unknown id changes nothing.
func (s *Service) DeleteCategory(id string) (removed int, found bool) {
	_ = s.mutate(func(l *domain.Ledger) error {
		_, found = l.Category(id)
		removed = l.RemoveCategory(id)
		return nil
	})
	if found {
		s.engine.Memory().Reset()
	}
	if removed > 0 {
		s.log.Info().Str("category_id", id).Int("transactions", removed).Msg("Category deleted with its transactions")
	}
	return removed, found
}

// AddTransaction records a transaction.
func (s *Service) AddTransaction(in domain.NewTransaction) (domain.Transaction, error) {
	var t domain.Transaction
	err := s.mutate(func(l *domain.Ledger) error {
		var err error
		t, err = l.RecordTransaction(in)
		return err
	})
	return t, err
}

// DeleteTransaction removes a transaction and reports whether it existed.
func (s *Service) DeleteTransaction(id string) bool {
	var removed bool
	_ = s.mutate(func(l *domain.Ledger) error {
		removed = l.RemoveTransaction(id)
		return nil
	})
	return removed
}

// AssignCategory moves transactions to a category.
func (s *Service) AssignCategory(ids []string, categoryID string) (int, error) {
	var n int
	err := s.mutate(func(l *domain.Ledger) error {
		var err error
		n, err = l.AssignCategory(ids, categoryID)
		return err
	})
	return n, err
}

// ImportResult summarises an import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	IDs      []string `json:"transaction_ids"`
}

// ImportDefaults returns the configured import options.
func (s *Service) ImportDefaults() pipeline.ImportOptions {
	return s.importDefaults
}

// ImportCSV runs the import pipeline against a copy of the ledger and
// swaps the copy in only if every step succeeded. data may be nil, in which
// case source is fetched. If the ledger changes while the pipeline runs the
// import is replayed on the new ledger with the bytes already fetched.
func (s *Service) ImportCSV(ctx context.Context, source string, data []byte, opts pipeline.ImportOptions) (ImportResult, error) {
	for {
		s.mu.RLock()
		working := s.ledger.Clone()
		version := s.version
		s.mu.RUnlock()

		state := &pipeline.ImportState{Source: source, Data: data, Options: opts, Ledger: working}
		if err := s.importer.Execute(ctx, state); err != nil {
			s.log.Warn().Err(err).Str("source", source).Msg("Import failed, ledger unchanged")
			return ImportResult{}, err
		}
		data = state.Data

		s.mu.Lock()
		if s.version != version {
			s.mu.Unlock()
			continue
		}
		s.ledger = working
		s.version++
		s.pruneSuggestionsLocked()
		s.mu.Unlock()

		result := ImportResult{Imported: len(state.Imported), Skipped: state.Skipped, IDs: make([]string, 0, len(state.Imported))}
		for _, t := range state.Imported {
			result.IDs = append(result.IDs, t.ID)
		}
		if result.Imported > 0 {
			s.notify(EventLedger)
		}
		return result, nil
	}
}
