package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gustavo-camilo/dealer-copilot/internal/competitor"
	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
	"github.com/gustavo-camilo/dealer-copilot/internal/urlnorm"
)

// CompetitorHandler exposes the competitor statistics pipeline.
type CompetitorHandler struct {
	aggregator *competitor.Aggregator
	store      *store.Store
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewCompetitorHandler(aggregator *competitor.Aggregator, st *store.Store, logger *slog.Logger) *CompetitorHandler {
	return &CompetitorHandler{
		aggregator: aggregator,
		store:      st,
		logger:     logger,
		validate:   validator.New(),
	}
}

type competitorScanRequest struct {
	Tenant        string `json:"tenant" validate:"required"`
	CompetitorURL string `json:"competitor_url" validate:"required"`
}

// Scan handles POST /api/competitors/scan.
func (h *CompetitorHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req competitorScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Snapshots are keyed by the raw URL, so canonicalize here before the
	// key is written.
	canonical, err := urlnorm.Normalize(req.CompetitorURL)
	if err != nil {
		h.jsonError(w, "invalid competitor url", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetTenant(ctx, req.Tenant); err != nil {
		if errors.Is(err, store.ErrTenantNotFound) {
			h.jsonError(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	stats, err := h.aggregator.Scan(ctx, req.Tenant, canonical)
	if err != nil {
		if errors.Is(err, competitor.ErrNoVehicles) {
			h.jsonError(w, "no vehicles found at competitor url", http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("competitor_scan_failed",
			slog.String("tenant", req.Tenant),
			slog.String("competitor_url", canonical),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, "competitor scan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domain.APIResponse{Success: true, Data: stats})
}

// List handles GET /api/tenants/{id}/competitors.
func (h *CompetitorHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "id")

	snapshots, err := h.store.ListCompetitorSnapshots(ctx, tenantID)
	if err != nil {
		h.logger.Error("competitor_list_failed",
			slog.String("tenant", tenantID),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"competitors": snapshots,
	})
}

func (h *CompetitorHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse{Success: false, Error: message})
}
