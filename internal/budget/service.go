// Package budget is the application service in front of the ledger. It
// serialises access to the ledger, persists it, runs imports and
// classification, and tells subscribers when something changed. Any user
// interface (HTTP, CLI) talks to a Service.
package budget

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/budget-ledger/internal/classifier"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/store"
	"github.com/rs/zerolog"
)

// DefaultAILogLimit is how many narration lines are kept.
const DefaultAILogLimit = 500

// EventKind says what changed.
type EventKind string

const (
	EventLedger         EventKind = "ledger"
	EventSuggestions    EventKind = "suggestions"
	EventAILog          EventKind = "ai_log"
	EventClassification EventKind = "classification"
)

// Event is passed to listeners after a change has been applied.
type Event struct {
	Kind EventKind `json:"kind"`
}

// Listener is called outside the service lock and must not block for long.
type Listener func(Event)

// Service coordinates all reads and writes of one ledger. It is safe for
// concurrent use.
type Service struct {
	mu          sync.RWMutex
	ledger      *domain.Ledger
	version     uint64
	suggestions map[string]classifier.Result
	aiLog       []string
	aiLogLimit  int

	// startMu serialises StartClassification. drained is closed once the
	// latest run's output has been absorbed; guarded by mu.
	startMu sync.Mutex
	drained chan struct{}

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	store          store.LedgerStore
	importer       *pipeline.Pipeline
	importDefaults pipeline.ImportOptions
	engine         *classifier.Engine
	runner         *inmemory.Runner
	jobStore       jobs.JobStore
	log            zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets where the ledger is loaded from and saved to.
func WithStore(s store.LedgerStore) Option {
	return func(svc *Service) { svc.store = s }
}

// WithFetcher sets how CSV sources are read.
func WithFetcher(f pipeline.Fetcher) Option {
	return func(svc *Service) { svc.importer = pipeline.NewImportPipeline(f) }
}

// WithImportDefaults sets the options used by ImportCSV callers that do not
// bring their own.
func WithImportDefaults(opts pipeline.ImportOptions) Option {
	return func(svc *Service) { svc.importDefaults = opts }
}

// WithEngine sets the classification engine.
func WithEngine(e *classifier.Engine) Option {
	return func(svc *Service) { svc.engine = e }
}

// WithRunner sets the background runner and the store its runs are
// recorded in.
func WithRunner(r *inmemory.Runner, js jobs.JobStore) Option {
	return func(svc *Service) {
		svc.runner = r
		svc.jobStore = js
	}
}

// WithAILogLimit caps the narration log.
func WithAILogLimit(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.aiLogLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(svc *Service) { svc.log = log }
}

// New creates a service over an empty ledger. Call Load to read the
// persisted one.
func New(opts ...Option) *Service {
	svc := &Service{
		ledger:         domain.NewLedger(),
		suggestions:    make(map[string]classifier.Result),
		aiLogLimit:     DefaultAILogLimit,
		listeners:      make(map[int]Listener),
		importDefaults: pipeline.DefaultImportOptions(),
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.store == nil {
		svc.store = store.NewFileStore(store.DefaultPath)
	}
	if svc.importer == nil {
		svc.importer = pipeline.NewImportPipeline(pipeline.NewSourceFetcher(nil))
	}
	if svc.engine == nil {
		svc.engine = classifier.New(classifier.WithLogger(svc.log))
	}
	if svc.jobStore == nil {
		svc.jobStore = inmemory.NewStore()
	}
	if svc.runner == nil {
		svc.runner = inmemory.NewRunner(svc.jobStore, inmemory.WithLogger(svc.log))
	}
	return svc
}

// Load replaces the in-memory ledger with the persisted one.
func (s *Service) Load(ctx context.Context) error {
	l, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	s.mu.Lock()
	s.ledger = l
	s.version++
	s.suggestions = make(map[string]classifier.Result)
	s.mu.Unlock()
	s.engine.Memory().Reset()

	s.log.Info().
		Int("categories", len(l.Categories())).
		Int("transactions", len(l.Transactions())).
		Msg("Ledger loaded")
	s.notify(EventLedger)
	return nil
}

// Save persists a snapshot of the ledger.
func (s *Service) Save(ctx context.Context) error {
	snapshot := s.Ledger()
	if err := s.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	s.log.Info().Int("transactions", len(snapshot.Transactions())).Msg("Ledger saved")
	return nil
}

// Ledger returns a private copy of the current ledger.
func (s *Service) Ledger() *domain.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone()
}

// Subscribe registers fn for change events and returns a function that
// removes it.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Service) notify(kind EventKind) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(Event{Kind: kind})
	}
}

// mutate runs fn under the write lock. On success stale suggestions are
// dropped and listeners are told about the change.
func (s *Service) mutate(fn func(l *domain.Ledger) error) error {
	s.mu.Lock()
	err := fn(s.ledger)
	if err == nil {
		s.version++
		s.pruneSuggestionsLocked()
	}
	s.mu.Unlock()

	if err == nil {
		s.notify(EventLedger)
	}
	return err
}

func (s *Service) pruneSuggestionsLocked() {
	for id := range s.suggestions {
		if !s.ledger.IsUnassigned(id) {
			delete(s.suggestions, id)
		}
	}
}
