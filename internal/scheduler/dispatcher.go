// Package scheduler dispatches pipeline runs: one tenant on demand, or all
// eligible tenants under a wall-clock budget for the periodic trigger. The
// dispatcher holds no cron state; an external trigger drives it.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// ErrNoTenants is returned when a periodic run finds nothing to scan.
var ErrNoTenants = errors.New("no eligible tenants")

// TenantStore enumerates scan targets.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
	ListEligibleTenants(ctx context.Context) ([]domain.Tenant, error)
}

// Runner executes the pipeline for one tenant.
type Runner interface {
	Run(ctx context.Context, tenant domain.Tenant) domain.TenantResult
}

// Response is the invocation envelope returned to the HTTP surface.
type Response struct {
	Results []domain.TenantResult `json:"results"`
	Summary domain.RunSummary     `json:"summary"`
}

type Dispatcher struct {
	tenants  TenantStore
	pipeline Runner
	logger   *slog.Logger
	budget   time.Duration
	now      func() time.Time
}

func New(tenants TenantStore, p Runner, logger *slog.Logger, budget time.Duration) *Dispatcher {
	if budget == 0 {
		budget = 100 * time.Second
	}
	return &Dispatcher{
		tenants:  tenants,
		pipeline: p,
		logger:   logger,
		budget:   budget,
		now:      time.Now,
	}
}

// RunTenant executes the pipeline for exactly one tenant, with no wall-clock
// cap beyond the fetcher's own deadlines.
func (d *Dispatcher) RunTenant(ctx context.Context, tenantID string) (*Response, error) {
	tenant, err := d.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	start := d.now()
	result := d.pipeline.Run(ctx, *tenant)

	resp := &Response{
		Results: []domain.TenantResult{result},
		Summary: domain.RunSummary{
			TotalTenants:     1,
			RequestedTenants: 1,
			TotalVehicles:    result.VehiclesFound,
			DurationMs:       time.Since(start).Milliseconds(),
		},
	}
	if result.Status == domain.SnapshotFailed {
		resp.Summary.Failed = 1
	} else {
		resp.Summary.Successful = 1
	}
	return resp, nil
}

// RunAll iterates every eligible tenant sequentially under the wall-clock
// budget. Tenants that do not fit are deferred to the next trigger; the
// in-flight tenant is never interrupted.
func (d *Dispatcher) RunAll(ctx context.Context) (*Response, error) {
	tenants, err := d.tenants.ListEligibleTenants(ctx)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrNoTenants
	}

	start := d.now()
	deadline := start.Add(d.budget)
	resp := &Response{
		Summary: domain.RunSummary{RequestedTenants: len(tenants)},
	}

	for _, tenant := range tenants {
		if !d.now().Before(deadline) {
			resp.Summary.TimedOut = true
			d.logger.Warn("dispatcher_budget_exhausted",
				slog.Int("completed", len(resp.Results)),
				slog.Int("requested", len(tenants)),
			)
			break
		}

		result := d.pipeline.Run(ctx, tenant)
		resp.Results = append(resp.Results, result)
		resp.Summary.TotalVehicles += result.VehiclesFound
		if result.Status == domain.SnapshotFailed {
			resp.Summary.Failed++
		} else {
			resp.Summary.Successful++
		}
	}

	resp.Summary.TotalTenants = len(resp.Results)
	resp.Summary.DurationMs = time.Since(start).Milliseconds()

	d.logger.Info("dispatcher_run_completed",
		slog.Int("requested", len(tenants)),
		slog.Int("completed", len(resp.Results)),
		slog.Int("successful", resp.Summary.Successful),
		slog.Int("failed", resp.Summary.Failed),
		slog.Bool("timed_out", resp.Summary.TimedOut),
	)
	return resp, nil
}
