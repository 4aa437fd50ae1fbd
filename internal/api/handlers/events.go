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

// DefaultKeepAlive is how often an idle event stream gets a comment line.
const DefaultKeepAlive = 15 * time.Second

// EventSource is what EventsHandler needs from the budget service.
type EventSource interface {
	Subscribe(fn budget.Listener) (unsubscribe func())
}

// EventsHandler streams change notifications as server-sent events so a
// client can refresh whatever view the event kind affects.
type EventsHandler struct {
	svc       EventSource
	log       zerolog.Logger
	keepAlive time.Duration
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(svc EventSource, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, log: log, keepAlive: DefaultKeepAlive}
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	// The server write timeout would otherwise end the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Slow clients miss events rather than stall the service.
	events := make(chan budget.Event, 32)
	unsubscribe := h.svc.Subscribe(func(e budget.Event) {
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			data, err := json.Marshal(e)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to encode event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
