// Package classifier suggests categories for unassigned transactions. The
// engine tries, in order, remembered labels of recurring transactions,
// similar labelled examples, a keyword table and finally a Stage, which is
// either local (keep the keyword result) or a remote model.
package classifier

import (
	"context"
	"errors"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Engine runs the classification pipeline. It is meant for sequential use;
// its only state is the bounded Memory.
type Engine struct {
	stage       Stage
	memory      *Memory
	maxExamples int
	keywords    []KeywordRule
	log         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStage sets the final stage. Defaults to LocalStage.
func WithStage(s Stage) Option {
	return func(e *Engine) {
		if s != nil {
			e.stage = s
		}
	}
}

// WithMaxExamples bounds the example window and the memory.
func WithMaxExamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxExamples = n
		}
	}
}

// WithKeywords replaces the built-in keyword table.
func WithKeywords(rules []KeywordRule) Option {
	return func(e *Engine) {
		e.keywords = rules
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		stage:       LocalStage{},
		maxExamples: DefaultMaxExamples,
		keywords:    DefaultKeywords(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.memory = NewMemory(e.maxExamples)
	return e
}

// NewStage returns a GeminiStage when apiKey is set and LocalStage
// otherwise.
func NewStage(ctx context.Context, apiKey string, opts ...GeminiOption) (Stage, error) {
	if apiKey == "" {
		return LocalStage{}, nil
	}
	return NewGeminiStage(ctx, apiKey, opts...)
}

// StageName reports which final stage is in use.
func (e *Engine) StageName() string { return e.stage.Name() }

// Memory exposes the engine's memory. Callers reset it when remembered
// categories may no longer exist.
func (e *Engine) Memory() *Memory { return e.memory }

// Suggest returns a category for txn, or nil when nothing fits. Examples
// are labelled transactions in ledger order; only the last few are used.
// Failures of the final stage are narrated through logf and absorbed.
func (e *Engine) Suggest(ctx context.Context, txn domain.Transaction, categories []string, examples []Example, logf LogFunc) *Result {
	if logf == nil {
		logf = nopLog
	}
	label := txn.Description
	if label == "" {
		label = txn.ID
	}
	if label == "" {
		label = "(unnamed)"
	}
	logf("Classifying transaction '" + label + "'.")

	if len(categories) == 0 && len(examples) == 0 {
		logf("Skipping classification: no existing categories or labelled examples available.")
		return nil
	}

	window := examples
	if len(window) > e.maxExamples {
		window = window[len(window)-e.maxExamples:]
	}
	for _, ex := range window {
		e.memory.Put(NormalizeKey(ex.Transaction), ex.Category)
	}

	if category, ok := e.memory.Get(NormalizeKey(txn)); ok {
		logf("Using memoised classification for recurring transaction.")
		return &Result{Category: category, Confidence: MemoConfidence}
	}

	if r := matchExamples(txn, window); r != nil {
		logf("Reused label from prior similar transaction.")
		return r
	}

	keyword := matchKeywords(e.keywords, txn, categories)
	if keyword != nil {
		logf("Derived category from keyword heuristics.")
	}

	req := Request{
		Transaction: txn,
		Categories:  categories,
		Examples:    window,
		Fallback:    keyword,
		Log:         logf,
	}
	result, err := e.stage.Classify(ctx, req)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			e.log.Warn().Err(err).Str("stage", terr.Stage).Str("transaction_id", txn.ID).Msg("Remote classification failed, using heuristic result")
		} else {
			e.log.Warn().Err(err).Str("transaction_id", txn.ID).Msg("Classification stage failed, using heuristic result")
		}
		result = keyword
	}

	if result == nil {
		logf("Heuristic engine could not determine a category.")
		return nil
	}
	result.Confidence = clamp(result.Confidence)
	return result
}

// matchExamples scans the examples most-recent-first for one sharing a
// token with txn.
func matchExamples(txn domain.Transaction, examples []Example) *Result {
	tokens := Tokens(txn)
	if len(tokens) == 0 {
		return nil
	}
	for i := len(examples) - 1; i >= 0; i-- {
		ex := examples[i]
		if ex.Category == "" {
			continue
		}
		exTokens := Tokens(ex.Transaction)
		if len(exTokens) == 0 || !intersects(tokens, exTokens) {
			continue
		}
		confidence := SimilarConfidence
		if txn.Description == ex.Transaction.Description {
			confidence = ExactExampleConfidence
		}
		return &Result{Category: ex.Category, Confidence: confidence}
	}
	return nil
}
