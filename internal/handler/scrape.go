package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/middleware"
	"github.com/gustavo-camilo/dealer-copilot/internal/scheduler"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
)

// ScrapeHandler exposes the inventory pipeline: one tenant on demand, or
// every eligible tenant when no tenant is named.
type ScrapeHandler struct {
	dispatcher *scheduler.Dispatcher
	logger     *slog.Logger
}

func NewScrapeHandler(dispatcher *scheduler.Dispatcher, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{dispatcher: dispatcher, logger: logger}
}

type scrapeRequest struct {
	Tenant string `json:"tenant,omitempty"`
}

// Run handles POST /api/scrape.
func (h *ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scrapeRequest
	if r.Body != nil {
		// An empty body means "all tenants".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.logger.Info("scrape_requested",
		slog.String("tenant", req.Tenant),
		slog.String("request_id", middleware.GetRequestID(ctx)),
	)

	var resp *scheduler.Response
	var err error
	if req.Tenant != "" {
		resp, err = h.dispatcher.RunTenant(ctx, req.Tenant)
	} else {
		resp, err = h.dispatcher.RunAll(ctx)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrTenantNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, scheduler.ErrNoTenants) {
			status = http.StatusNotFound
		}
		h.logger.Error("scrape_failed",
			slog.String("tenant", req.Tenant),
			slog.String("error", err.Error()),
		)
		h.jsonError(w, err.Error(), status)
		return
	}

	message := "scrape completed"
	if resp.Summary.TimedOut {
		message = "scrape completed partially; remaining tenants deferred"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": message,
		"results": resp.Results,
		"summary": resp.Summary,
	})
}

func (h *ScrapeHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse{Success: false, Error: message})
}
