package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// UpsertCompetitorSnapshot replaces the current statistics for one
// (tenant, competitor_url).
func (s *Store) UpsertCompetitorSnapshot(ctx context.Context, c *domain.CompetitorStats) error {
	s.track("upsert", "competitor_snapshots")
	topMakes, err := json.Marshal(c.TopMakes)
	if err != nil {
		return fmt.Errorf("encode top makes: %w", err)
	}
	if c.TopMakes == nil {
		topMakes = []byte("[]")
	}

	query := `
		INSERT INTO competitor_snapshots (
			tenant_id, competitor_url, vehicle_count, avg_price, min_price, max_price,
			avg_mileage, min_mileage, max_mileage, total_inventory_value, top_makes, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, competitor_url) DO UPDATE SET
			vehicle_count = EXCLUDED.vehicle_count,
			avg_price = EXCLUDED.avg_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			avg_mileage = EXCLUDED.avg_mileage,
			min_mileage = EXCLUDED.min_mileage,
			max_mileage = EXCLUDED.max_mileage,
			total_inventory_value = EXCLUDED.total_inventory_value,
			top_makes = EXCLUDED.top_makes,
			scanned_at = EXCLUDED.scanned_at
	`
	_, err = s.db.Exec(ctx, query,
		c.TenantID, c.CompetitorURL, c.VehicleCount, c.AvgPrice, c.MinPrice, c.MaxPrice,
		c.AvgMileage, c.MinMileage, c.MaxMileage, c.TotalInventoryValue, topMakes, c.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert competitor snapshot: %w", err)
	}
	return nil
}

// InsertCompetitorScan appends one row to the scan history.
func (s *Store) InsertCompetitorScan(ctx context.Context, c *domain.CompetitorStats) error {
	s.track("insert", "competitor_scan_history")
	topMakes, err := json.Marshal(c.TopMakes)
	if err != nil {
		return fmt.Errorf("encode top makes: %w", err)
	}
	if c.TopMakes == nil {
		topMakes = []byte("[]")
	}

	query := `
		INSERT INTO competitor_scan_history (
			tenant_id, competitor_url, vehicle_count, avg_price, min_price, max_price,
			avg_mileage, min_mileage, max_mileage, total_inventory_value, top_makes, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.Exec(ctx, query,
		c.TenantID, c.CompetitorURL, c.VehicleCount, c.AvgPrice, c.MinPrice, c.MaxPrice,
		c.AvgMileage, c.MinMileage, c.MaxMileage, c.TotalInventoryValue, topMakes, c.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("insert competitor scan: %w", err)
	}
	return nil
}

// ListCompetitorSnapshots returns the current snapshot per competitor URL.
func (s *Store) ListCompetitorSnapshots(ctx context.Context, tenantID string) ([]domain.CompetitorStats, error) {
	s.track("select", "competitor_snapshots")
	query := `
		SELECT tenant_id, competitor_url, vehicle_count, avg_price, min_price, max_price,
		       avg_mileage, min_mileage, max_mileage, total_inventory_value, top_makes, scanned_at
		FROM competitor_snapshots
		WHERE tenant_id = $1
		ORDER BY competitor_url
	`
	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list competitor snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.CompetitorStats
	for rows.Next() {
		var c domain.CompetitorStats
		var topMakes []byte
		if err := rows.Scan(
			&c.TenantID, &c.CompetitorURL, &c.VehicleCount, &c.AvgPrice, &c.MinPrice,
			&c.MaxPrice, &c.AvgMileage, &c.MinMileage, &c.MaxMileage,
			&c.TotalInventoryValue, &topMakes, &c.ScannedAt,
		); err != nil {
			return nil, fmt.Errorf("scan competitor snapshot: %w", err)
		}
		if len(topMakes) > 0 {
			_ = json.Unmarshal(topMakes, &c.TopMakes)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
