package fixtures

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/store"
)

// SetupTestDB creates a connection pool for testing. Skips the test when
// TEST_DATABASE_URL is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "Failed to connect to test database")

	err = db.Ping(ctx)
	require.NoError(t, err, "Failed to ping test database")

	// Clean up on test completion
	t.Cleanup(func() {
		CleanupTestData(t, db)
		db.Close()
	})

	return db
}

// SetupTestDBWithMigrations sets up the pool and applies the schema.
func SetupTestDBWithMigrations(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	require.NoError(t, store.Migrate(dbURL), "Failed to run migrations")

	return SetupTestDB(t)
}

// CleanupTestData removes every row the fixtures may have created, child
// tables first.
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"competitor_scan_history",
		"competitor_snapshots",
		"sitemap_cache",
		"scraping_logs",
		"inventory_snapshots",
		"sales_records",
		"vehicle_history",
		"tenants",
	}
	for _, table := range tables {
		_, err := db.Exec(ctx, "DELETE FROM "+table+" WHERE tenant_id LIKE 'test-%' OR id::text LIKE 'test-%'")
		if err != nil {
			// tenants has no tenant_id column
			_, _ = db.Exec(ctx, "DELETE FROM "+table+" WHERE id::text LIKE 'test-%'")
		}
	}
}
