package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/rs/zerolog"
)

// LedgerService is what LedgerHandler needs from the budget service.
type LedgerService interface {
	Totals() budget.Totals
	Save(ctx context.Context) error
}

// LedgerHandler serves totals and persistence.
type LedgerHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc LedgerService, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, log: log}
}

// Totals handles GET /api/totals
func (h *LedgerHandler) Totals(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.Totals())
}

// Save handles POST /api/save
func (h *LedgerHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
