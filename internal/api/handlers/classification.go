package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/dvloznov/budget-ledger/internal/classifier"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// ClassificationService is what ClassificationHandler needs from the budget
// service.
type ClassificationService interface {
	ClassificationStatus() budget.ClassificationStatus
	Suggestions() []budget.SuggestionView
	AILog() []string
	ClearAILog()
	StartClassification(ctx context.Context) (bool, error)
	StopClassification(ctx context.Context) error
	Suggest(ctx context.Context, txnID string) (*classifier.Result, error)
	AcceptSuggestion(txnID, categoryName string) (bool, error)
	RejectSuggestion(txnID string) bool
}

// ClassificationHandler drives category suggestions.
type ClassificationHandler struct {
	svc ClassificationService
	log zerolog.Logger
}

// NewClassificationHandler creates a new classification handler.
func NewClassificationHandler(svc ClassificationService, log zerolog.Logger) *ClassificationHandler {
	return &ClassificationHandler{svc: svc, log: log}
}

type classificationResponse struct {
	Status      budget.ClassificationStatus `json:"status"`
	Suggestions []budget.SuggestionView     `json:"suggestions"`
	Log         []string                    `json:"log"`
}

func (h *ClassificationHandler) snapshot() classificationResponse {
	resp := classificationResponse{
		Status:      h.svc.ClassificationStatus(),
		Suggestions: h.svc.Suggestions(),
		Log:         h.svc.AILog(),
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []budget.SuggestionView{}
	}
	if resp.Log == nil {
		resp.Log = []string{}
	}
	return resp
}

// Status handles GET /api/classification
func (h *ClassificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.snapshot())
}

// Start handles POST /api/classification/start. It answers 202 when a run
// was started and 200 when one was already active.
func (h *ClassificationHandler) Start(w http.ResponseWriter, r *http.Request) {
	// The run outlives this request.
	started, err := h.svc.StartClassification(context.WithoutCancel(r.Context()))
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if started {
		status = http.StatusAccepted
		h.log.Info().Msg("Classification run started")
	}
	middleware.WriteJSON(w, status, map[string]interface{}{
		"started": started,
		"status":  h.svc.ClassificationStatus(),
	})
}

// Stop handles POST /api/classification/stop
func (h *ClassificationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StopClassification(r.Context()); err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.snapshot())
}

// ClearLog handles DELETE /api/classification/log
func (h *ClassificationHandler) ClearLog(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearAILog()
	w.WriteHeader(http.StatusNoContent)
}

// Suggest handles POST /api/suggestions/{txn_id}. The suggestion is null
// when nothing could be suggested.
func (h *ClassificationHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txn_id")
	result, err := h.svc.Suggest(r.Context(), txnID)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	resp := map[string]interface{}{
		"transaction_id": txnID,
		"suggestion":     result,
	}
	if result != nil {
		resp["display"] = result.String()
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Accept handles POST /api/suggestions/{txn_id}/accept. An optional
// {"category": "..."} body overrides the pending suggestion.
func (h *ClassificationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	txnID := r.PathValue("txn_id")
	created, err := h.svc.AcceptSuggestion(txnID, req.Category)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id":   txnID,
		"category_created": created,
	})
}

// Reject handles DELETE /api/suggestions/{txn_id}
func (h *ClassificationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txn_id")
	if !h.svc.RejectSuggestion(txnID) {
		middleware.WriteDomainError(w, h.log, &domain.NotFoundError{Kind: "suggestion", ID: txnID})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
