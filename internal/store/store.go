// Package store persists the ledger as a single JSON document, either in a
// local file or in a Cloud Storage object.
package store

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/gcs"
)

// DefaultPath is the ledger file used when none is configured.
const DefaultPath = "budget_data.json"

// Backends accepted by New.
const (
	BackendFile = "file"
	BackendGCS  = "gcs"
)

// LedgerStore loads and saves whole ledgers. Loading a ledger that was never
// saved yields an empty ledger.
type LedgerStore interface {
	Load(ctx context.Context) (*domain.Ledger, error)
	Save(ctx context.Context, l *domain.Ledger) error
}

// Options selects a backend.
type Options struct {
	Backend string
	Path    string
	GCSURI  string
}

// New builds the store described by opts. storage is only needed for the
// gcs backend.
func New(opts Options, storage gcs.StorageService) (LedgerStore, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Path), nil
	case BackendGCS:
		if storage == nil {
			return nil, fmt.Errorf("store: gcs backend needs a storage client")
		}
		if _, _, err := gcs.ParseURI(opts.GCSURI); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return NewGCSStore(storage, opts.GCSURI), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
