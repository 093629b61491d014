package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/middleware"
	"github.com/gustavo-camilo/dealer-copilot/internal/realtime"
)

// EventsHandler streams scrape lifecycle events over SSE.
type EventsHandler struct {
	broker    *realtime.Broker
	logger    *slog.Logger
	keepalive time.Duration
}

func NewEventsHandler(broker *realtime.Broker, logger *slog.Logger, keepalive time.Duration) *EventsHandler {
	if keepalive == 0 {
		keepalive = 30 * time.Second
	}
	return &EventsHandler{broker: broker, logger: logger, keepalive: keepalive}
}

// Stream handles GET /api/events?tenant=<id>.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "tenant query parameter required", http.StatusBadRequest)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.broker.Subscribe(tenantID)
	defer h.broker.Unsubscribe(sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sse_connection_opened",
		slog.String("subscriber_id", sub.ID),
		slog.String("tenant_id", tenantID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	w.Write([]byte("event: connected\ndata: {\"tenant_id\":\"" + tenantID + "\"}\n\n"))
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("sse_connection_closed",
				slog.String("subscriber_id", sub.ID),
				slog.String("tenant_id", tenantID),
			)
			return

		case msg := <-sub.Messages:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
