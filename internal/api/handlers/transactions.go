package handlers

import (
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionService is what TransactionsHandler needs from the budget
// service.
type TransactionService interface {
	TransactionsForDisplay() []budget.TransactionRow
	TransactionForDisplay(id string) (budget.TransactionRow, bool)
	AddTransaction(in domain.NewTransaction) (domain.Transaction, error)
	DeleteTransaction(id string) bool
	AssignCategory(ids []string, categoryID string) (int, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc TransactionService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// ListTransactions handles GET /api/transactions. ?unassigned=true limits
// the list to transactions without a category.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	rows := h.svc.TransactionsForDisplay()
	if r.URL.Query().Get("unassigned") == "true" {
		kept := rows[:0]
		for _, row := range rows {
			if row.CategoryID == "" {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": rows,
		"count":        len(rows),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description  string `json:"description"`
		Amount       amount `json:"amount"`
		OccurredOn   string `json:"occurred_on"`
		CategoryID   string `json:"category_id"`
		AccountID    string `json:"account_id"`
		AccountName  string `json:"account_name"`
		Counterparty string `json:"counterparty"`
		Reference    string `json:"reference"`
		Company      string `json:"company"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.svc.AddTransaction(domain.NewTransaction{
		Description:  req.Description,
		Amount:       string(req.Amount),
		OccurredOn:   req.OccurredOn,
		CategoryID:   req.CategoryID,
		AccountID:    req.AccountID,
		AccountName:  req.AccountName,
		Counterparty: req.Counterparty,
		Reference:    req.Reference,
		Company:      req.Company,
	})
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	row, _ := h.svc.TransactionForDisplay(t.ID)
	middleware.WriteJSON(w, http.StatusCreated, row)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.svc.DeleteTransaction(id) {
		middleware.WriteDomainError(w, h.log, &domain.NotFoundError{Kind: "transaction", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignCategory handles POST /api/transactions/assign
func (h *TransactionsHandler) AssignCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs []string `json:"transaction_ids"`
		CategoryID     string   `json:"category_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.svc.AssignCategory(req.TransactionIDs, req.CategoryID)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"assigned": n})
}
