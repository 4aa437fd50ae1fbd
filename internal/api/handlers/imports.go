package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/budget"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

// ImportService is what ImportHandler needs from the budget service.
type ImportService interface {
	ImportDefaults() pipeline.ImportOptions
	ImportCSV(ctx context.Context, source string, data []byte, opts pipeline.ImportOptions) (budget.ImportResult, error)
}

// ImportHandler handles CSV imports.
type ImportHandler struct {
	svc ImportService
	log zerolog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc ImportService, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, log: log}
}

// Import handles POST /api/import. The export is either uploaded as the
// "file" field of a multipart form, or named by {"source": ...} as a local
// path or gs:// URI. Import options may be given as the "options" form
// field or JSON member; the configured defaults apply otherwise.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts := h.svc.ImportDefaults()

	var (
		source string
		data   []byte
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "A CSV file is required in the 'file' field")
			return
		}
		defer file.Close()

		data, err = io.ReadAll(file)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		source = header.Filename
		if raw := r.FormValue("options"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &opts); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid import options")
				return
			}
		}
	} else {
		var req struct {
			Source  string                  `json:"source"`
			Options *pipeline.ImportOptions `json:"options"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Source == "" {
			middleware.WriteError(w, http.StatusBadRequest, "source is required")
			return
		}
		source = req.Source
		if req.Options != nil {
			opts = *req.Options
		}
	}

	result, err := h.svc.ImportCSV(ctx, source, data, opts)
	if err != nil {
		h.log.Warn().Err(err).Str("source", source).Msg("Import failed")
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	h.log.Info().
		Str("source", source).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("CSV imported")
	middleware.WriteJSON(w, http.StatusOK, result)
}
