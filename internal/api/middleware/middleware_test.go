package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/csvimport"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &domain.ValidationError{Field: "amount", Value: "x"}, want: http.StatusBadRequest},
		{name: "not found", err: &domain.NotFoundError{Kind: "category", ID: "c"}, want: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("pipeline step 3 (resolve categories) failed: %w", &domain.NotFoundError{Kind: "category", ID: "c"}), want: http.StatusNotFound},
		{name: "import", err: &csvimport.ImportError{Line: 4, Reason: "bad amount"}, want: http.StatusUnprocessableEntity},
		{name: "other", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteDomainErrorHidesInternalErrors(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	WriteDomainError(rec, logger.NewWithWriter(&logs), errors.New("secret path /var/data"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Contains(t, logs.String(), "secret path")

	rec = httptest.NewRecorder()
	WriteDomainError(rec, logger.NewWithWriter(&logs), &domain.NotFoundError{Kind: "transaction", ID: "t1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown transaction id \"t1\"`)
}

func TestRequestIDAndRecovery(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logs)

	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		if r.URL.Path == "/panic" {
			panic("boom")
		}
		WriteJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}), Recovery(log), Logger(log), RequestID, CORS())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "Panic recovered")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSAllowList(t *testing.T) {
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{name: "listed", origin: "http://localhost:5173", want: "http://localhost:5173"},
		{name: "not listed", origin: "https://evil.example", want: ""},
		{name: "no origin", origin: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var logs bytes.Buffer
	h := Logger(logger.NewWithWriter(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "nope")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/categories/x", nil))
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), `"status":404`)
	assert.Contains(t, logs.String(), `"path":"/api/categories/x"`)
}
