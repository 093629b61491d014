package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// ErrTenantNotFound is returned when a tenant id does not exist.
var ErrTenantNotFound = errors.New("tenant not found")

// GetTenant returns one tenant by id.
func (s *Store) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	s.track("select", "tenants")
	query := `
		SELECT id, name, COALESCE(website, ''), status, tier, cost_settings, created_at
		FROM tenants
		WHERE id = $1
	`
	var t domain.Tenant
	var costSettings []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Website, &t.Status, &t.Tier, &costSettings, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if len(costSettings) > 0 {
		if err := json.Unmarshal(costSettings, &t.CostSettings); err != nil {
			return nil, fmt.Errorf("decode cost settings: %w", err)
		}
	}
	return &t, nil
}

// ListEligibleTenants returns tenants the periodic dispatcher should scan:
// not suspended or cancelled, and with a website configured.
func (s *Store) ListEligibleTenants(ctx context.Context) ([]domain.Tenant, error) {
	s.track("select", "tenants")
	query := `
		SELECT id, name, COALESCE(website, ''), status, tier, cost_settings, created_at
		FROM tenants
		WHERE status NOT IN ($1, $2)
		  AND website IS NOT NULL
		  AND website <> ''
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, domain.TenantSuspended, domain.TenantCancelled)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		var costSettings []byte
		if err := rows.Scan(&t.ID, &t.Name, &t.Website, &t.Status, &t.Tier, &costSettings, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		if len(costSettings) > 0 {
			_ = json.Unmarshal(costSettings, &t.CostSettings)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
