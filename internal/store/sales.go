package store

import (
	"context"
	"fmt"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// InsertSalesRecord writes one synthetic sale. The unique constraint on
// (tenant, identifier, sale_date) absorbs a sweep running twice in one day;
// inserted reports whether a new row was actually written.
func (s *Store) InsertSalesRecord(ctx context.Context, r *domain.SalesRecord) (inserted bool, err error) {
	s.track("insert", "sales_records")
	query := `
		INSERT INTO sales_records (
			tenant_id, identifier, year, make, model, sale_price, sale_date, days_to_sale
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, identifier, sale_date) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query,
		r.TenantID, r.Identifier, nullInt(r.Year), nullStr(r.Make), nullStr(r.Model),
		r.SalePrice, r.SaleDate, r.DaysToSale,
	)
	if err != nil {
		return false, fmt.Errorf("insert sales record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSalesRecords returns a page of sales for a tenant, newest first.
func (s *Store) ListSalesRecords(ctx context.Context, tenantID string, limit, offset int) ([]domain.SalesRecord, int64, error) {
	s.track("select", "sales_records")
	query := `
		SELECT id, tenant_id, identifier, COALESCE(year, 0), COALESCE(make, ''),
		       COALESCE(model, ''), sale_price, sale_date, days_to_sale,
		       acquisition_cost, gross_profit, margin_percent
		FROM sales_records
		WHERE tenant_id = $1
		ORDER BY sale_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales records: %w", err)
	}
	defer rows.Close()

	var out []domain.SalesRecord
	for rows.Next() {
		var r domain.SalesRecord
		if err := rows.Scan(
			&r.ID, &r.TenantID, &r.Identifier, &r.Year, &r.Make, &r.Model,
			&r.SalePrice, &r.SaleDate, &r.DaysToSale,
			&r.AcquisitionCost, &r.GrossProfit, &r.MarginPercent,
		); err != nil {
			return nil, 0, fmt.Errorf("scan sales record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sales_records WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
