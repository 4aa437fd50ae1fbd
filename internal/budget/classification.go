package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/classifier"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
)

// SuggestionView is a pending suggestion for an unassigned transaction.
type SuggestionView struct {
	TransactionID string  `json:"transaction_id"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Display       string  `json:"display"`
}

// ClassificationStatus describes the latest background run.
type ClassificationStatus struct {
	Active bool              `json:"active"`
	Stage  string            `json:"stage"`
	Job    *jobs.ClassifyJob `json:"job,omitempty"`
}

// batch is a point-in-time view of what the classifier needs.
type batch struct {
	pending    []domain.Transaction
	categories []string
	examples   []classifier.Example
}

func (s *Service) snapshotLocked(pending []domain.Transaction) batch {
	b := batch{pending: pending, categories: s.ledger.CategoryNames()}
	for _, t := range s.ledger.Transactions() {
		c, ok := s.ledger.Category(t.CategoryID)
		if !ok {
			continue
		}
		b.examples = append(b.examples, classifier.Example{Transaction: t, Category: c.Name})
	}
	return b
}

func (s *Service) snapshot() batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.ledger.Unassigned())
}

func label(t domain.Transaction) string {
	if t.Description != "" {
		return t.Description
	}
	return t.ID
}

// prefixed narrates on behalf of one transaction.
func prefixed(txnID string, logf classifier.LogFunc) classifier.LogFunc {
	return func(msg string) { logf(fmt.Sprintf("[%s] %s", txnID, msg)) }
}

// classifyBatch runs the engine over every pending transaction, checking
// ctx before each one. emit is called for each suggestion produced.
func (s *Service) classifyBatch(ctx context.Context, b batch, logf classifier.LogFunc,
	emit func(ctx context.Context, txnID string, r classifier.Result) error, progress func(done, total int)) error {
	total := len(b.pending)
	if total == 0 {
		logf("No unassigned transactions to classify.")
		return nil
	}
	noun := "transactions"
	if total == 1 {
		noun = "transaction"
	}
	logf(fmt.Sprintf("Attempting to classify %d unassigned %s.", total, noun))

	for i, t := range b.pending {
		if ctx.Err() != nil {
			logf("AI classification cancelled.")
			return ctx.Err()
		}
		logf(fmt.Sprintf("Requesting suggestion for '%s'.", label(t)))

		result := s.engine.Suggest(ctx, t, b.categories, b.examples, prefixed(t.ID, logf))
		if result == nil {
			logf(fmt.Sprintf("No suggestion produced for '%s'.", label(t)))
		} else if err := emit(ctx, t.ID, *result); err != nil {
			logf("AI classification cancelled.")
			return err
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

// storeSuggestion keeps r if the transaction is still unassigned.
func (s *Service) storeSuggestion(txnID string, r classifier.Result) bool {
	s.mu.Lock()
	ok := s.ledger.IsUnassigned(txnID)
	if ok {
		s.suggestions[txnID] = r
	}
	s.mu.Unlock()

	if ok {
		s.notify(EventSuggestions)
	} else {
		s.log.Debug().Str("transaction_id", txnID).Msg("Discarding suggestion for a transaction that is no longer unassigned")
	}
	return ok
}

// Suggest classifies one transaction now and records the suggestion.
// It returns nil when nothing could be suggested.
func (s *Service) Suggest(ctx context.Context, txnID string) (*classifier.Result, error) {
	s.mu.RLock()
	t, ok := s.ledger.Transaction(txnID)
	var b batch
	if ok {
		b = s.snapshotLocked(nil)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "transaction", ID: txnID}
	}

	result := s.engine.Suggest(ctx, t, b.categories, b.examples, prefixed(t.ID, s.AddAILogEntry))
	if result != nil && !t.Assigned() {
		s.storeSuggestion(t.ID, *result)
	}
	return result, nil
}

// SuggestUnassigned classifies every unassigned transaction in the calling
// goroutine. onSuggestion may be nil. Suggestions gathered before ctx was
// cancelled are kept and returned together with ctx's error.
func (s *Service) SuggestUnassigned(ctx context.Context, onSuggestion func(txnID string, r classifier.Result)) (map[string]classifier.Result, error) {
	b := s.snapshot()
	out := make(map[string]classifier.Result)
	err := s.classifyBatch(ctx, b, s.AddAILogEntry, func(_ context.Context, id string, r classifier.Result) error {
		if s.storeSuggestion(id, r) {
			out[id] = r
			if onSuggestion != nil {
				onSuggestion(id, r)
			}
		}
		return nil
	}, nil)
	return out, err
}

// StartClassification classifies all unassigned transactions in the
// background. It is a no-op returning false while a run is active.
// Previous suggestions and the AI log are cleared only when a run starts.
func (s *Service) StartClassification(ctx context.Context) (bool, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.runner.Active() {
		return false, nil
	}
	if prev := s.drainedCh(); prev != nil {
		<-prev
	}

	b := s.snapshot()
	run, started, err := s.runner.Start(ctx, func(ctx context.Context, sink jobs.Sink) error {
		return s.classifyBatch(ctx, b, sink.Log, func(ctx context.Context, id string, r classifier.Result) error {
			return sink.Suggest(ctx, jobs.Suggestion{TransactionID: id, Category: r.Category, Confidence: r.Confidence})
		}, sink.Progress)
	})
	if err != nil {
		return false, fmt.Errorf("start classification: %w", err)
	}
	if !started {
		return false, nil
	}

	// Run output stays buffered in its channels until drain starts below.
	drained := make(chan struct{})
	s.mu.Lock()
	s.suggestions = make(map[string]classifier.Result)
	s.drained = drained
	s.mu.Unlock()
	s.ClearAILog()
	s.AddAILogEntry("AI classification started by user.")

	go s.drain(run, drained)
	s.notify(EventClassification)
	return true, nil
}

func (s *Service) drainedCh() chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drained
}

// drain moves a run's output into the service until both channels close.
func (s *Service) drain(run *inmemory.Run, drained chan struct{}) {
	defer close(drained)

	logs, results := run.Logs(), run.Results()
	for logs != nil || results != nil {
		select {
		case entry, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			s.AddAILogEntry(entry.Message)
		case sg, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			s.storeSuggestion(sg.TransactionID, classifier.Result{Category: sg.Category, Confidence: sg.Confidence})
		}
	}
	<-run.Done()
	s.notify(EventClassification)
}

// StopClassification cancels the active run. Suggestions already produced
// are kept. Stopping when nothing runs does nothing.
func (s *Service) StopClassification(ctx context.Context) error {
	if !s.runner.Active() {
		return nil
	}
	err := s.runner.Stop(ctx)
	s.AddAILogEntry("AI classification stopped by user.")
	if errors.Is(err, inmemory.ErrStopTimeout) {
		s.log.Warn().Msg("Classification run is still winding down")
		return nil
	}
	return err
}

// WaitClassification blocks until the current run and its output have been
// fully absorbed, or ctx is done.
func (s *Service) WaitClassification(ctx context.Context) error {
	drained := s.drainedCh()
	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClassificationStatus reports on the latest background run.
func (s *Service) ClassificationStatus() ClassificationStatus {
	st := ClassificationStatus{Active: s.runner.Active(), Stage: s.engine.StageName()}
	if run := s.runner.Current(); run != nil {
		job := run.Job()
		st.Job = &job
	}
	return st
}

// Jobs lists recorded classification runs, newest first.
func (s *Service) Jobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ClassifyJob, error) {
	return s.jobStore.ListJobs(ctx, filter)
}

// Job returns one recorded run.
func (s *Service) Job(ctx context.Context, id string) (*jobs.ClassifyJob, error) {
	return s.jobStore.GetJob(ctx, id)
}

// Suggestions lists pending suggestions in transaction order.
func (s *Service) Suggestions() []SuggestionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SuggestionView
	for _, t := range s.ledger.Transactions() {
		r, ok := s.suggestions[t.ID]
		if !ok {
			continue
		}
		out = append(out, SuggestionView{
			TransactionID: t.ID,
			Description:   t.Description,
			Category:      r.Category,
			Confidence:    r.Confidence,
			Display:       r.String(),
		})
	}
	return out
}

// AcceptSuggestion assigns the transaction to categoryName, creating the
// category with a zero plan if no category has that name. An empty
// categoryName accepts the pending suggestion. created reports whether a
// category was added.
func (s *Service) AcceptSuggestion(txnID, categoryName string) (created bool, err error) {
	var txnLabel string
	err = s.mutate(func(l *domain.Ledger) error {
		t, ok := l.Transaction(txnID)
		if !ok {
			return &domain.NotFoundError{Kind: "transaction", ID: txnID}
		}
		txnLabel = label(t)
		if categoryName == "" {
			r, ok := s.suggestions[txnID]
			if !ok {
				return &domain.NotFoundError{Kind: "suggestion", ID: txnID}
			}
			categoryName = r.Category
		}

		c, ok := l.CategoryByName(categoryName)
		if !ok {
			var addErr error
			c, addErr = l.AddCategory(categoryName, "0")
			if addErr != nil {
				return addErr
			}
			created = true
		}
		if _, assignErr := l.AssignCategory([]string{txnID}, c.ID); assignErr != nil {
			return assignErr
		}
		delete(s.suggestions, txnID)
		return nil
	})
	if err != nil {
		return false, err
	}
	s.AddAILogEntry(fmt.Sprintf("Accepted suggestion '%s' for transaction '%s'.", categoryName, txnLabel))
	return created, nil
}

// RejectSuggestion drops a pending suggestion and reports whether there was
// one.
func (s *Service) RejectSuggestion(txnID string) bool {
	s.mu.Lock()
	_, ok := s.suggestions[txnID]
	delete(s.suggestions, txnID)
	s.mu.Unlock()

	if ok {
		s.notify(EventSuggestions)
	}
	return ok
}

// AILog returns the narration lines, oldest first.
func (s *Service) AILog() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.aiLog...)
}

// ClearAILog empties the narration log.
func (s *Service) ClearAILog() {
	s.mu.Lock()
	s.aiLog = nil
	s.mu.Unlock()
	s.notify(EventAILog)
}

// AddAILogEntry appends a narration line, dropping the oldest beyond the
// limit.
func (s *Service) AddAILogEntry(msg string) {
	s.log.Debug().Str("component", "classifier").Msg(msg)

	s.mu.Lock()
	s.aiLog = append(s.aiLog, msg)
	if over := len(s.aiLog) - s.aiLogLimit; over > 0 {
		s.aiLog = append([]string(nil), s.aiLog[over:]...)
	}
	s.mu.Unlock()
	s.notify(EventAILog)
}
