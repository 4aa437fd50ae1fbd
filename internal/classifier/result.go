package classifier

import (
	"fmt"
	"math"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

// Confidence reported by each pipeline stage.
const (
	MemoConfidence          = 0.99
	ExactExampleConfidence  = 0.85
	SimilarConfidence       = 0.70
	KeywordConfidence       = 0.60
	DefaultRemoteConfidence = 0.5
)

// Result is a suggested category name, which may not exist in the ledger
// yet, with a confidence in [0, 1].
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// String renders the suggestion for display, e.g. "Groceries (85%)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%d%%)", r.Category, int(math.Round(r.Confidence*100)))
}

// Example is a transaction the user has already categorised.
type Example struct {
	Transaction domain.Transaction
	Category    string
}

// LogFunc receives human-readable narration of each pipeline decision.
type LogFunc func(message string)

func nopLog(string) {}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultRemoteConfidence
	}
	return math.Max(0, math.Min(1, v))
}
