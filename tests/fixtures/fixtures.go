package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// TestTenant creates an active tenant with a website and returns its id.
func TestTenant(t *testing.T, db *pgxpool.Pool) string {
	t.Helper()
	ctx := context.Background()

	id := fmt.Sprintf("test-%s", uuid.New().String()[:8])
	_, err := db.Exec(ctx, `
		INSERT INTO tenants (id, name, website, status, tier)
		VALUES ($1, $2, $3, 'active', 'professional')
	`, id, "Test Dealership "+id, "https://example-dealer.test")
	require.NoError(t, err)

	return id
}

// TenantWithWebsite creates an active tenant pointed at the given site.
func TenantWithWebsite(t *testing.T, db *pgxpool.Pool, website string) string {
	t.Helper()
	ctx := context.Background()

	id := fmt.Sprintf("test-%s", uuid.New().String()[:8])
	_, err := db.Exec(ctx, `
		INSERT INTO tenants (id, name, website, status, tier)
		VALUES ($1, $2, $3, 'active', 'professional')
	`, id, "Test Dealership "+id, website)
	require.NoError(t, err)

	return id
}

// SuspendedTenant creates a tenant the periodic dispatcher must skip.
func SuspendedTenant(t *testing.T, db *pgxpool.Pool) string {
	t.Helper()
	ctx := context.Background()

	id := fmt.Sprintf("test-%s", uuid.New().String()[:8])
	_, err := db.Exec(ctx, `
		INSERT INTO tenants (id, name, website, status, tier)
		VALUES ($1, $2, $3, 'suspended', 'starter')
	`, id, "Suspended Dealership "+id, "https://suspended-dealer.test")
	require.NoError(t, err)

	return id
}

// SeedVehicleHistory inserts one active history row and returns its id.
func SeedVehicleHistory(t *testing.T, db *pgxpool.Pool, tenantID, identifier string, price int, lastSeen time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO vehicle_history (
			tenant_id, identifier, year, make, model, price, status,
			first_seen_at, last_seen_at, price_history,
			listing_date_confidence, listing_date_source
		) VALUES ($1, $2, 2020, 'Honda', 'Accord', $3, $4, $5, $5,
			$6, $7, $8)
		RETURNING id
	`, tenantID, identifier, price, domain.StatusActive, lastSeen,
		fmt.Sprintf(`[{"date":%q,"price":%d}]`, lastSeen.Format(time.RFC3339), price),
		domain.ConfidenceEstimated, domain.SourceFirstScan,
	).Scan(&id)
	require.NoError(t, err)

	return id
}
