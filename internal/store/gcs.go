package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/gcs"
)

// GCSStore keeps the ledger in a Cloud Storage object.
type GCSStore struct {
	storage gcs.StorageService
	uri     string
}

// NewGCSStore creates a store for the object at uri (gs://bucket/object).
func NewGCSStore(storage gcs.StorageService, uri string) *GCSStore {
	return &GCSStore{storage: storage, uri: uri}
}

// Load implements LedgerStore.
func (s *GCSStore) Load(ctx context.Context) (*domain.Ledger, error) {
	data, err := s.storage.FetchFromGCS(ctx, s.uri)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return domain.NewLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.uri, err)
	}
	return Decode(data)
}

// Save implements LedgerStore.
func (s *GCSStore) Save(ctx context.Context, l *domain.Ledger) error {
	data, err := Encode(l)
	if err != nil {
		return err
	}
	if err := s.storage.WriteToGCS(ctx, s.uri, data, "application/json"); err != nil {
		return fmt.Errorf("write ledger %s: %w", s.uri, err)
	}
	return nil
}

var _ LedgerStore = (*GCSStore)(nil)
