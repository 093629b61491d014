package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

const historyColumns = `
	id, tenant_id, identifier, COALESCE(stock_number, ''), COALESCE(year, 0),
	COALESCE(make, ''), COALESCE(model, ''), COALESCE(trim, ''), COALESCE(color, ''),
	COALESCE(mileage, 0), COALESCE(price, 0), COALESCE(listing_url, ''),
	COALESCE(image_url, ''), image_urls, status, first_seen_at, last_seen_at,
	price_history, COALESCE(listing_date_confidence, ''), COALESCE(listing_date_source, '')`

func scanHistory(row pgx.Row) (*domain.VehicleHistory, error) {
	var v domain.VehicleHistory
	var imageURLs, priceHistory []byte
	err := row.Scan(
		&v.ID, &v.TenantID, &v.Identifier, &v.StockNumber, &v.Year,
		&v.Make, &v.Model, &v.Trim, &v.Color,
		&v.Mileage, &v.Price, &v.ListingURL,
		&v.ImageURL, &imageURLs, &v.Status, &v.FirstSeenAt, &v.LastSeenAt,
		&priceHistory, &v.ListingDateConfidence, &v.ListingDateSource,
	)
	if err != nil {
		return nil, err
	}
	if len(imageURLs) > 0 {
		_ = json.Unmarshal(imageURLs, &v.ImageURLs)
	}
	if len(priceHistory) > 0 {
		if err := json.Unmarshal(priceHistory, &v.PriceHistory); err != nil {
			return nil, fmt.Errorf("decode price history: %w", err)
		}
	}
	return &v, nil
}

// GetActiveVehicle looks up the single active row for (tenant, identifier).
func (s *Store) GetActiveVehicle(ctx context.Context, tenantID, identifier string) (*domain.VehicleHistory, error) {
	s.track("select", "vehicle_history")
	query := `SELECT ` + historyColumns + `
		FROM vehicle_history
		WHERE tenant_id = $1 AND identifier = $2 AND status = $3
		ORDER BY id
		LIMIT 1`
	v, err := scanHistory(s.db.QueryRow(ctx, query, tenantID, identifier, domain.StatusActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active vehicle: %w", err)
	}
	return v, nil
}

// ListActiveVehicles returns every active row for a tenant.
func (s *Store) ListActiveVehicles(ctx context.Context, tenantID string) ([]domain.VehicleHistory, error) {
	s.track("select", "vehicle_history")
	query := `SELECT ` + historyColumns + `
		FROM vehicle_history
		WHERE tenant_id = $1 AND status = $2
		ORDER BY id`
	rows, err := s.db.Query(ctx, query, tenantID, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active vehicles: %w", err)
	}
	defer rows.Close()

	var out []domain.VehicleHistory
	for rows.Next() {
		v, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// ListVehicles returns a page of history rows for a tenant, newest first,
// optionally filtered by status.
func (s *Store) ListVehicles(ctx context.Context, tenantID, status string, limit, offset int) ([]domain.VehicleHistory, int64, error) {
	s.track("select", "vehicle_history")
	query := `SELECT ` + historyColumns + `
		FROM vehicle_history
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY last_seen_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := s.db.Query(ctx, query, tenantID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []domain.VehicleHistory
	for rows.Next() {
		v, err := scanHistory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	countQuery := `
		SELECT COUNT(*) FROM vehicle_history
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)`
	if err := s.db.QueryRow(ctx, countQuery, tenantID, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// InsertVehicleHistory creates a new active row for a first sighting.
func (s *Store) InsertVehicleHistory(ctx context.Context, v *domain.VehicleHistory) error {
	s.track("insert", "vehicle_history")
	imageURLs, _ := json.Marshal(v.ImageURLs)
	priceHistory, _ := json.Marshal(v.PriceHistory)
	if v.ImageURLs == nil {
		imageURLs = []byte("[]")
	}
	if v.PriceHistory == nil {
		priceHistory = []byte("[]")
	}

	query := `
		INSERT INTO vehicle_history (
			tenant_id, identifier, stock_number, year, make, model, trim, color,
			mileage, price, listing_url, image_url, image_urls, status,
			first_seen_at, last_seen_at, price_history,
			listing_date_confidence, listing_date_source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING id
	`
	err := s.db.QueryRow(ctx, query,
		v.TenantID, v.Identifier, nullStr(v.StockNumber), nullInt(v.Year),
		nullStr(v.Make), nullStr(v.Model), nullStr(v.Trim), nullStr(v.Color),
		nullInt(v.Mileage), nullInt(v.Price), nullStr(v.ListingURL), nullStr(v.ImageURL),
		imageURLs, v.Status, v.FirstSeenAt, v.LastSeenAt, priceHistory,
		nullStr(v.ListingDateConfidence), nullStr(v.ListingDateSource),
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("insert vehicle history: %w", err)
	}
	return nil
}

// UpdateVehicleHistory rewrites the mutable attributes of an existing row.
func (s *Store) UpdateVehicleHistory(ctx context.Context, v *domain.VehicleHistory) error {
	s.track("update", "vehicle_history")
	imageURLs, _ := json.Marshal(v.ImageURLs)
	priceHistory, _ := json.Marshal(v.PriceHistory)
	if v.ImageURLs == nil {
		imageURLs = []byte("[]")
	}
	if v.PriceHistory == nil {
		priceHistory = []byte("[]")
	}

	query := `
		UPDATE vehicle_history SET
			identifier = $1, stock_number = $2, year = $3, make = $4, model = $5,
			trim = $6, color = $7, mileage = $8, price = $9, listing_url = $10,
			image_url = $11, image_urls = $12, last_seen_at = $13, price_history = $14
		WHERE id = $15 AND tenant_id = $16
	`
	_, err := s.db.Exec(ctx, query,
		v.Identifier, nullStr(v.StockNumber), nullInt(v.Year), nullStr(v.Make),
		nullStr(v.Model), nullStr(v.Trim), nullStr(v.Color), nullInt(v.Mileage),
		nullInt(v.Price), nullStr(v.ListingURL), nullStr(v.ImageURL), imageURLs,
		v.LastSeenAt, priceHistory, v.ID, v.TenantID,
	)
	if err != nil {
		return fmt.Errorf("update vehicle history: %w", err)
	}
	return nil
}

// MarkVehicleSold transitions one row to sold. Sold is terminal.
func (s *Store) MarkVehicleSold(ctx context.Context, tenantID string, id int64) error {
	s.track("update", "vehicle_history")
	query := `
		UPDATE vehicle_history SET status = $1
		WHERE id = $2 AND tenant_id = $3 AND status = $4
	`
	_, err := s.db.Exec(ctx, query, domain.StatusSold, id, tenantID, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("mark vehicle sold: %w", err)
	}
	return nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
