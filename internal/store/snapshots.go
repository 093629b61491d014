package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// CreateSnapshot opens the per-run marker in pending state and fills in the
// generated id.
func (s *Store) CreateSnapshot(ctx context.Context, snap *domain.InventorySnapshot) error {
	s.track("insert", "inventory_snapshots")
	query := `
		INSERT INTO inventory_snapshots (tenant_id, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := s.db.QueryRow(ctx, query, snap.TenantID, snap.StartedAt, domain.SnapshotPending).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

// FinalizeSnapshot records the run outcome and raw parsed payload.
func (s *Store) FinalizeSnapshot(ctx context.Context, snap *domain.InventorySnapshot) error {
	s.track("update", "inventory_snapshots")
	query := `
		UPDATE inventory_snapshots
		SET status = $1, vehicles_found = $2, duration_ms = $3, raw_data = $4
		WHERE id = $5 AND tenant_id = $6
	`
	var raw any
	if len(snap.RawData) > 0 {
		raw = snap.RawData
	}
	_, err := s.db.Exec(ctx, query,
		snap.Status, snap.VehiclesFound, snap.DurationMs, raw, snap.ID, snap.TenantID,
	)
	if err != nil {
		return fmt.Errorf("finalize snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns a page of run markers for a tenant, newest first.
func (s *Store) ListSnapshots(ctx context.Context, tenantID string, limit, offset int) ([]domain.InventorySnapshot, int64, error) {
	s.track("select", "inventory_snapshots")
	query := `
		SELECT id, tenant_id, started_at, status, vehicles_found, duration_ms
		FROM inventory_snapshots
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.InventorySnapshot
	for rows.Next() {
		var snap domain.InventorySnapshot
		if err := rows.Scan(&snap.ID, &snap.TenantID, &snap.StartedAt, &snap.Status,
			&snap.VehiclesFound, &snap.DurationMs); err != nil {
			return nil, 0, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_snapshots WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// InsertScrapingLog persists one structured log line. Failures are logged
// and swallowed: losing a log line must never fail a run.
func (s *Store) InsertScrapingLog(ctx context.Context, l *domain.ScrapingLog) {
	s.track("insert", "scraping_logs")
	var detail any
	if len(l.Detail) > 0 {
		b, err := json.Marshal(l.Detail)
		if err == nil {
			detail = b
		}
	}
	query := `
		INSERT INTO scraping_logs (tenant_id, snapshot_id, level, message, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, l.TenantID, l.SnapshotID, l.Level, l.Message, detail); err != nil {
		s.logger.Warn("scraping_log_write_failed",
			slog.String("tenant_id", l.TenantID),
			slog.String("error", err.Error()),
		)
	}
}
