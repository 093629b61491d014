package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// staleScrapeWindow marks the engine degraded when no snapshot has been
// written for two daily trigger cycles.
const staleScrapeWindow = 48 * time.Hour

type HealthHandler struct {
	db        *pgxpool.Pool
	startTime time.Time
}

func NewHealthHandler(db *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string)
	status := "healthy"

	// Database reachability, with latency so a saturated pool shows up
	// before it pages.
	pingStart := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy (" + time.Since(pingStart).Round(time.Millisecond).String() + ")"

		if err := h.checkSchema(ctx); err != nil {
			checks["schema"] = "missing: " + err.Error()
			status = "unhealthy"
		} else {
			checks["schema"] = "healthy"
		}

		checks["scraping"] = h.checkScrapeActivity(ctx)
		if checks["scraping"] == "stale" && status == "healthy" {
			status = "degraded"
		}
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// checkSchema verifies the migrated tables exist, so a fresh deploy that
// skipped migrations fails fast instead of erroring on the first scrape.
func (h *HealthHandler) checkSchema(ctx context.Context) error {
	var exists bool
	err := h.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'vehicle_history'
		)
	`).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("vehicle_history table not found")
	}
	return nil
}

// checkScrapeActivity reports whether the daily pipeline has been writing
// snapshots. "idle" (no tenants or no runs yet) is fine; "stale" means
// tenants exist but nothing has run inside the window.
func (h *HealthHandler) checkScrapeActivity(ctx context.Context) string {
	var last *time.Time
	if err := h.db.QueryRow(ctx,
		`SELECT MAX(started_at) FROM inventory_snapshots`,
	).Scan(&last); err != nil || last == nil {
		return "idle"
	}
	if time.Since(*last) > staleScrapeWindow {
		return "stale"
	}
	return "active"
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// Readiness: can the service accept traffic and reach its schema?
	ctx := r.Context()
	if err := h.db.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	if err := h.checkSchema(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("schema not migrated"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	// Liveness: the process is up, nothing more.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
