package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dvloznov/budget-ledger/internal/csvimport"
	"github.com/dvloznov/budget-ledger/internal/gcs"
)

// Fetcher loads the raw bytes of an export.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// SourceFetcher reads local files, and gs:// URIs when storage is set.
// With an import directory, local paths must resolve inside it.
type SourceFetcher struct {
	storage   gcs.StorageService
	importDir string
}

// FetchOption configures a SourceFetcher.
type FetchOption func(*SourceFetcher)

// WithImportDir confines local sources to dir. Relative sources are taken
// relative to dir; absolute ones must point inside it.
func WithImportDir(dir string) FetchOption {
	return func(f *SourceFetcher) { f.importDir = dir }
}

// NewSourceFetcher creates a fetcher. storage may be nil.
func NewSourceFetcher(storage gcs.StorageService, opts ...FetchOption) *SourceFetcher {
	f := &SourceFetcher{storage: storage}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *SourceFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, &csvimport.ImportError{Reason: "no source given"}
	}
	if gcs.IsURI(source) {
		if f.storage == nil {
			return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: errors.New("cloud storage is not configured")}
		}
		data, err := f.storage.FetchFromGCS(ctx, source)
		if err != nil {
			return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
		}
		return data, nil
	}

	if f.importDir != "" {
		return f.readConfined(source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
	}
	return data, nil
}

// readConfined opens source through an os.Root so that neither ".." nor
// symlinks can leave the import directory.
func (f *SourceFetcher) readConfined(source string) ([]byte, error) {
	name := source
	if filepath.IsAbs(name) {
		dir, err := filepath.Abs(f.importDir)
		if err != nil {
			return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
		}
		name = rel
	}

	root, err := os.OpenRoot(f.importDir)
	if err != nil {
		return nil, &csvimport.ImportError{Reason: "open import directory", Err: err}
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &csvimport.ImportError{Reason: fmt.Sprintf("read %s", source), Err: err}
	}
	return data, nil
}

var _ Fetcher = (*SourceFetcher)(nil)
