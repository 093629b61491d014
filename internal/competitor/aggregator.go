// Package competitor runs the reduced pipeline against competitor dealer
// sites: fetch and parse, no reconciliation, then aggregate market
// statistics with full history.
package competitor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/extractor"
)

// ErrNoVehicles is returned when the competitor site yielded nothing to
// aggregate.
var ErrNoVehicles = errors.New("no vehicles parsed from competitor site")

// Store is the slice of persistence the aggregator needs.
type Store interface {
	UpsertCompetitorSnapshot(ctx context.Context, c *domain.CompetitorStats) error
	InsertCompetitorScan(ctx context.Context, c *domain.CompetitorStats) error
}

type Aggregator struct {
	extractor *extractor.Client
	store     Store
	logger    *slog.Logger
	now       func() time.Time
}

func New(ex *extractor.Client, store Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		extractor: ex,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Scan fetches and parses one competitor URL and persists the aggregate
// snapshot plus a history row. The two writes happen in sequence; failure
// of one is logged and does not abort the other.
func (a *Aggregator) Scan(ctx context.Context, tenantID, competitorURL string) (*domain.CompetitorStats, error) {
	outcome := a.extractor.Extract(ctx, competitorURL)
	if len(outcome.Vehicles) == 0 {
		return nil, ErrNoVehicles
	}

	stats := ComputeStats(tenantID, competitorURL, outcome.Vehicles, a.now())

	if err := a.store.UpsertCompetitorSnapshot(ctx, &stats); err != nil {
		a.logger.Error("competitor_snapshot_write_failed",
			slog.String("tenant_id", tenantID),
			slog.String("competitor_url", competitorURL),
			slog.String("error", err.Error()),
		)
	}
	if err := a.store.InsertCompetitorScan(ctx, &stats); err != nil {
		a.logger.Error("competitor_history_write_failed",
			slog.String("tenant_id", tenantID),
			slog.String("competitor_url", competitorURL),
			slog.String("error", err.Error()),
		)
	}

	a.logger.Info("competitor_scanned",
		slog.String("tenant_id", tenantID),
		slog.String("competitor_url", competitorURL),
		slog.Int("vehicle_count", stats.VehicleCount),
		slog.String("method", outcome.Method),
	)
	return &stats, nil
}

// ComputeStats aggregates the full parsed set; no sampling.
func ComputeStats(tenantID, competitorURL string, vehicles []domain.ParsedVehicle, now time.Time) domain.CompetitorStats {
	stats := domain.CompetitorStats{
		TenantID:      tenantID,
		CompetitorURL: competitorURL,
		VehicleCount:  len(vehicles),
		ScannedAt:     now,
	}

	var priceSum, priceCount int64
	var mileageSum, mileageCount int64
	makes := make(map[string]int)

	for _, v := range vehicles {
		if v.Price > 0 {
			priceSum += int64(v.Price)
			priceCount++
			if stats.MinPrice == 0 || v.Price < stats.MinPrice {
				stats.MinPrice = v.Price
			}
			if v.Price > stats.MaxPrice {
				stats.MaxPrice = v.Price
			}
		}
		if v.Mileage > 0 {
			mileageSum += int64(v.Mileage)
			mileageCount++
			if stats.MinMileage == 0 || v.Mileage < stats.MinMileage {
				stats.MinMileage = v.Mileage
			}
			if v.Mileage > stats.MaxMileage {
				stats.MaxMileage = v.Mileage
			}
		}
		if v.Make != "" {
			makes[v.Make]++
		}
	}

	stats.TotalInventoryValue = decimal.NewFromInt(priceSum)
	if priceCount > 0 {
		stats.AvgPrice = decimal.NewFromInt(priceSum).
			Div(decimal.NewFromInt(priceCount)).Round(2)
	}
	if mileageCount > 0 {
		stats.AvgMileage = decimal.NewFromInt(mileageSum).
			Div(decimal.NewFromInt(mileageCount)).Round(2)
	}

	stats.TopMakes = topMakes(makes, 5)
	return stats
}

// topMakes ranks by count descending, name ascending on ties.
func topMakes(counts map[string]int, n int) []domain.MakeCount {
	out := make([]domain.MakeCount, 0, len(counts))
	for make, count := range counts {
		out = append(out, domain.MakeCount{Make: make, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Make < out[j].Make
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
