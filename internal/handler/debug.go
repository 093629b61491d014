package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gustavo-camilo/dealer-copilot/internal/realtime"
)

type DebugHandler struct {
	broker *realtime.Broker
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewDebugHandler(broker *realtime.Broker, db *pgxpool.Pool, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{broker: broker, db: db, logger: logger}
}

// ScrapeStats returns live SSE broker and database pool statistics.
func (h *DebugHandler) ScrapeStats(w http.ResponseWriter, r *http.Request) {
	sseStats := h.broker.Stats()
	dbStats := h.db.Stat()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sse": map[string]interface{}{
			"total_connections":  sseStats.TotalConnections,
			"tenants_with_state": sseStats.TenantsWithState,
			"dropped_events":     sseStats.DroppedEvents,
			"tenants":            sseStats.Tenants,
		},
		"db": map[string]interface{}{
			"acquired_conns": dbStats.AcquiredConns(),
			"idle_conns":     dbStats.IdleConns(),
			"total_conns":    dbStats.TotalConns(),
		},
	})
}
