package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
)

// InventoryHandler serves the read views dashboards consume: current
// inventory with price history, sales, and run snapshots.
type InventoryHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewInventoryHandler(st *store.Store, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{store: st, logger: logger}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// ListInventory handles GET /api/tenants/{id}/inventory.
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "id")
	limit, offset := pagination(r)

	status := r.URL.Query().Get("status")
	if status == "" {
		status = domain.StatusActive
	}
	if status != domain.StatusActive && status != domain.StatusSold {
		h.jsonError(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	vehicles, total, err := h.store.ListVehicles(ctx, tenantID, status, limit, offset)
	if err != nil {
		h.logger.Error("inventory_list_failed",
			slog.String("tenant", tenantID),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"vehicles": vehicles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": int64(offset+len(vehicles)) < total,
	})
}

// ListSales handles GET /api/tenants/{id}/sales.
func (h *InventoryHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "id")
	limit, offset := pagination(r)

	sales, total, err := h.store.ListSalesRecords(ctx, tenantID, limit, offset)
	if err != nil {
		h.logger.Error("sales_list_failed",
			slog.String("tenant", tenantID),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sales":    sales,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": int64(offset+len(sales)) < total,
	})
}

// ListSnapshots handles GET /api/tenants/{id}/snapshots.
func (h *InventoryHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "id")
	limit, offset := pagination(r)

	snapshots, total, err := h.store.ListSnapshots(ctx, tenantID, limit, offset)
	if err != nil {
		h.logger.Error("snapshot_list_failed",
			slog.String("tenant", tenantID),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"snapshots": snapshots,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
		"has_more":  int64(offset+len(snapshots)) < total,
	})
}

func (h *InventoryHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse{Success: false, Error: message})
}
