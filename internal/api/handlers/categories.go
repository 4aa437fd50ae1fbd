package handlers

import (
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// CategoryService is what CategoriesHandler needs from the budget service.
type CategoryService interface {
	CategoriesForDisplay() []budget.CategoryRow
	AddCategory(name, planned string) (domain.Category, error)
	UpdateCategory(id string, upd domain.CategoryUpdate) (domain.Category, error)
	DeleteCategory(id string) (removed int, found bool)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	svc CategoryService
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc CategoryService, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{svc: svc, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.svc.CategoriesForDisplay()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Planned amount `json:"planned"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Planned == "" {
		req.Planned = "0"
	}

	c, err := h.svc.AddCategory(req.Name, string(req.Planned))
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	h.log.Info().Str("category_id", c.ID).Str("name", c.Name).Msg("Category created")
	middleware.WriteJSON(w, http.StatusCreated, budget.CategoryRowFor(c))
}

// UpdateCategory handles PUT /api/categories/{id}
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    *string `json:"name"`
		Planned *amount `json:"planned"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	upd := domain.CategoryUpdate{Name: req.Name}
	if req.Planned != nil {
		planned := string(*req.Planned)
		upd.Planned = &planned
	}
	c, err := h.svc.UpdateCategory(r.PathValue("id"), upd)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, budget.CategoryRowFor(c))
}

// DeleteCategory handles DELETE /api/categories/{id}. Transactions in the
// category are deleted with it.
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, found := h.svc.DeleteCategory(id)
	if !found {
		middleware.WriteDomainError(w, h.log, &domain.NotFoundError{Kind: "category", ID: id})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category_id":          id,
		"transactions_removed": removed,
	})
}
