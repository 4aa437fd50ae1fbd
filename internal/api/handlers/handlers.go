// Package handlers exposes budget.Service over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON bodies and CSV uploads.
const maxBodyBytes = 32 << 20

// NewRouter wires every endpoint to svc.
func NewRouter(svc *budget.Service, log zerolog.Logger) *http.ServeMux {
	categories := NewCategoriesHandler(svc, log)
	transactions := NewTransactionsHandler(svc, log)
	imports := NewImportHandler(svc, log)
	classification := NewClassificationHandler(svc, log)
	jobs := NewJobsHandler(svc, log)
	ledger := NewLedgerHandler(svc, log)
	events := NewEventsHandler(svc, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/categories", categories.ListCategories)
	mux.HandleFunc("POST /api/categories", categories.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", categories.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", categories.DeleteCategory)

	mux.HandleFunc("GET /api/transactions", transactions.ListTransactions)
	mux.HandleFunc("POST /api/transactions", transactions.CreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", transactions.DeleteTransaction)
	mux.HandleFunc("POST /api/transactions/assign", transactions.AssignCategory)

	mux.HandleFunc("GET /api/totals", ledger.Totals)
	mux.HandleFunc("POST /api/save", ledger.Save)
	mux.HandleFunc("POST /api/import", imports.Import)

	mux.HandleFunc("GET /api/classification", classification.Status)
	mux.HandleFunc("POST /api/classification/start", classification.Start)
	mux.HandleFunc("POST /api/classification/stop", classification.Stop)
	mux.HandleFunc("DELETE /api/classification/log", classification.ClearLog)
	mux.HandleFunc("POST /api/suggestions/{txn_id}", classification.Suggest)
	mux.HandleFunc("POST /api/suggestions/{txn_id}/accept", classification.Accept)
	mux.HandleFunc("DELETE /api/suggestions/{txn_id}", classification.Reject)

	mux.HandleFunc("GET /api/jobs", jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobs.GetJob)

	mux.HandleFunc("GET /api/events", events.Stream)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

// decodeJSON reads a JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// amount accepts a JSON string such as "12.50" or a JSON number.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	*a = amount(n.String())
	return nil
}
