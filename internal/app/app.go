// Package app assembles a budget.Service from configuration. The binaries
// under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/dvloznov/budget-ledger/internal/classifier"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/gcs"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/store"
	"github.com/rs/zerolog"
)

// App is a configured service plus the clients it holds open.
type App struct {
	Config  *config.Config
	Service *budget.Service
	Storage gcs.StorageService

	storage *lazyStorage
}

// New validates cfg, builds the service and loads the persisted ledger.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storage := &lazyStorage{ctx: context.WithoutCancel(ctx)}
	ledgerStore, err := store.New(store.Options{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		GCSURI:  cfg.Storage.GCSURI,
	}, storage)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jobStore := inmemory.NewStore()
	runner := inmemory.NewRunner(jobStore,
		inmemory.WithBuffers(cfg.Classifier.LogBuffer, cfg.Classifier.ResultBuffer),
		inmemory.WithStopWait(cfg.Classifier.GetStopWait()),
		inmemory.WithLogger(log),
	)

	svc := budget.New(
		budget.WithStore(ledgerStore),
		budget.WithFetcher(pipeline.NewSourceFetcher(storage, fetchOptions(cfg.Ledger)...)),
		budget.WithImportDefaults(ImportOptions(cfg.Ledger)),
		budget.WithEngine(engine),
		budget.WithRunner(runner, jobStore),
		budget.WithAILogLimit(cfg.Classifier.AILogLimit),
		budget.WithLogger(log),
	)
	if err := svc.Load(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("stage", engine.StageName()).
		Msg("Application ready")

	return &App{Config: cfg, Service: svc, Storage: storage, storage: storage}, nil
}

func newEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*classifier.Engine, error) {
	stage, err := classifier.NewStage(ctx, cfg.Gemini.APIKey,
		classifier.WithModel(cfg.Gemini.Model),
		classifier.WithTemperature(cfg.Gemini.Temperature),
		classifier.WithGeminiLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("create classifier stage: %w", err)
	}

	opts := []classifier.Option{
		classifier.WithStage(stage),
		classifier.WithMaxExamples(cfg.Classifier.MaxExamples),
		classifier.WithLogger(log),
	}
	if cfg.Classifier.KeywordsFile != "" {
		rules, err := classifier.LoadKeywords(cfg.Classifier.KeywordsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, classifier.WithKeywords(rules))
	}
	return classifier.New(opts...), nil
}

// ImportOptions converts the [ledger] section into import defaults.
func ImportOptions(c config.LedgerConfig) pipeline.ImportOptions {
	return pipeline.ImportOptions{
		CategoryByAccount: c.CategoryByAccount,
		DefaultCategoryID: c.DefaultCategoryID,
		SkipExisting:      c.SkipExisting,
	}
}

func fetchOptions(c config.LedgerConfig) []pipeline.FetchOption {
	if c.ImportDir == "" {
		return nil
	}
	return []pipeline.FetchOption{pipeline.WithImportDir(c.ImportDir)}
}

// Close stops any classification run and releases clients. It does not
// save the ledger.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Service.StopClassification(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var errStorageClosed = errors.New("cloud storage client is closed")

// lazyStorage opens the Cloud Storage client on first use so that setups
// without gs:// paths never need credentials. client and err are only read
// after once has run.
type lazyStorage struct {
	ctx    context.Context
	once   sync.Once
	client *gcs.Client
	err    error
}

func (s *lazyStorage) get() (*gcs.Client, error) {
	s.once.Do(func() {
		s.client, s.err = gcs.NewClient(s.ctx)
	})
	return s.client, s.err
}

func (s *lazyStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	return c.UploadFile(ctx, bucketName, objectName, filePath)
}

func (s *lazyStorage) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	c, err := s.get()
	if err != nil {
		return nil, err
	}
	return c.FetchFromGCS(ctx, gcsURI)
}

func (s *lazyStorage) WriteToGCS(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	c, err := s.get()
	if err != nil {
		return err
	}
	return c.WriteToGCS(ctx, gcsURI, data, contentType)
}

// Close closes the client if it was ever opened. Later use fails with
// errStorageClosed when the client had not been opened yet.
func (s *lazyStorage) Close() error {
	s.once.Do(func() { s.err = errStorageClosed })
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ gcs.StorageService = (*lazyStorage)(nil)
