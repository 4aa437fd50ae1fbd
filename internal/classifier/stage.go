package classifier

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

// Stage is the last step of the pipeline. It runs after the keyword
// heuristic and may refine its result. Fallback carries the keyword result
// (possibly nil) so that a stage can decline by returning it.
type Stage interface {
	Name() string
	Classify(ctx context.Context, req Request) (*Result, error)
}

// Request is everything a Stage may look at.
type Request struct {
	Transaction domain.Transaction
	Categories  []string
	Examples    []Example
	Fallback    *Result
	Log         LogFunc
}

func (r Request) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log(fmt.Sprintf(format, args...))
	}
}

// TransportError wraps any failure to reach or understand the remote model.
// Engine.Suggest absorbs it and falls back to the heuristic result.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LocalStage is used when no remote model is configured. It keeps the
// heuristic result.
type LocalStage struct{}

// Name implements Stage.
func (LocalStage) Name() string { return "local" }

// Classify implements Stage.
func (LocalStage) Classify(_ context.Context, req Request) (*Result, error) {
	req.logf("Remote model is not configured; using heuristic result.")
	return req.Fallback, nil
}

var _ Stage = LocalStage{}
