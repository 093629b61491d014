package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/listingdate"
	"github.com/gustavo-camilo/dealer-copilot/internal/reconcile"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
	"github.com/gustavo-camilo/dealer-copilot/tests/fixtures"
)

func newDBEngine(st *store.Store, now time.Time) *reconcile.Engine {
	return reconcile.NewEngine(st, listingdate.New(testLogger()), testLogger(),
		reconcile.WithSoldAbsenceDays(2),
		reconcile.WithClock(func() time.Time { return now }),
	)
}

func dealerVehicles() []domain.ParsedVehicle {
	return []domain.ParsedVehicle{
		{VIN: "1HGCV1F30LA012345", Year: 2020, Make: "Honda", Model: "Accord", Price: 23495, Mileage: 42000},
		{Year: 2019, Make: "Toyota", Model: "Camry", StockNumber: "ABC123", Price: 21000, Mileage: 51000},
		{Year: 2021, Make: "Ford", Model: "F-150", Price: 37000, Mileage: 28000,
			ListingURL: "https://example-dealer.test/inventory/f150-4wd"},
	}
}

func TestReconcileLifecycleAgainstDatabase(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)
	ctx := context.Background()

	day1 := time.Now().Add(-6 * 24 * time.Hour).Truncate(time.Second)

	// Run 1: fresh dealer with three listings.
	out := newDBEngine(st, day1).Reconcile(ctx, reconcile.Input{
		TenantID: tenantID,
		Vehicles: dealerVehicles(),
	})
	require.Equal(t, 3, out.New)
	require.Zero(t, out.WriteFailures)

	active, err := st.ListActiveVehicles(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, active, 3)

	// Run 2: a day later the Honda dropped to 22995.
	day2 := day1.Add(24 * time.Hour)
	vehicles := dealerVehicles()
	vehicles[0].Price = 22995
	out = newDBEngine(st, day2).Reconcile(ctx, reconcile.Input{
		TenantID: tenantID,
		Vehicles: vehicles,
	})
	assert.Equal(t, 0, out.New)
	assert.Equal(t, 3, out.Updated)

	honda, err := st.GetActiveVehicle(ctx, tenantID, "1HGCV1F30LA012345")
	require.NoError(t, err)
	require.NotNil(t, honda)
	assert.Equal(t, 22995, honda.Price)
	require.Len(t, honda.PriceHistory, 2)
	assert.Equal(t, domain.StatusActive, honda.Status)

	// Run 3: three days later the Toyota is gone.
	day5 := day2.Add(3 * 24 * time.Hour)
	remaining := []domain.ParsedVehicle{vehicles[0], vehicles[2]}
	out = newDBEngine(st, day5).Reconcile(ctx, reconcile.Input{
		TenantID: tenantID,
		Vehicles: remaining,
	})
	assert.Equal(t, 1, out.Sold)

	gone, err := st.GetActiveVehicle(ctx, tenantID, "STOCK_ABC123")
	require.NoError(t, err)
	assert.Nil(t, gone)

	sales, total, err := st.ListSalesRecords(ctx, tenantID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, sales, 1)
	require.NotNil(t, sales[0].SalePrice)
	assert.Equal(t, 21000, *sales[0].SalePrice)
	assert.Nil(t, sales[0].AcquisitionCost)

	// Run 4: the Ford reveals its VIN; the synthetic row is rewritten.
	day6 := day5.Add(24 * time.Hour)
	withVIN := []domain.ParsedVehicle{remaining[0], remaining[1]}
	withVIN[1].VIN = "1FTFW1E50MKE12345"
	out = newDBEngine(st, day6).Reconcile(ctx, reconcile.Input{
		TenantID: tenantID,
		Vehicles: withVIN,
	})
	assert.Equal(t, 0, out.New)

	upgraded, err := st.GetActiveVehicle(ctx, tenantID, "1FTFW1E50MKE12345")
	require.NoError(t, err)
	require.NotNil(t, upgraded)

	old, err := st.GetActiveVehicle(ctx, tenantID, "2021_FORD_F-150__28000__37000")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestSalesRecordUniqueConstraint(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)
	ctx := context.Background()

	price := 21000
	record := &domain.SalesRecord{
		TenantID:   tenantID,
		Identifier: "STOCK_ABC123",
		Year:       2019, Make: "Toyota", Model: "Camry",
		SalePrice:  &price,
		SaleDate:   time.Now().Truncate(24 * time.Hour),
		DaysToSale: 4,
	}

	inserted, err := st.InsertSalesRecord(ctx, record)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.InsertSalesRecord(ctx, record)
	require.NoError(t, err)
	assert.False(t, inserted, "same-day duplicate must be absorbed by the constraint")
}

func TestSitemapCacheUpsert(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	entry := &domain.SitemapCache{
		TenantID:    tenantID,
		Website:     "https://example-dealer.test",
		Paths:       map[string]string{"/inventory/accord": "2025-07-01"},
		URLCount:    1,
		CachedAt:    now,
		ExpiresAt:   now.Add(24 * time.Hour),
		FetchStatus: domain.SitemapSuccess,
	}
	require.NoError(t, st.UpsertSitemapCache(ctx, entry))

	// Second write replaces, never duplicates.
	entry.Paths["/inventory/camry"] = "2025-07-02"
	entry.URLCount = 2
	require.NoError(t, st.UpsertSitemapCache(ctx, entry))

	got, err := st.GetSitemapCache(ctx, tenantID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.URLCount)
	assert.Len(t, got.Paths, 2)
}
