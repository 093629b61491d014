package integration

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/handler"
	"github.com/gustavo-camilo/dealer-copilot/internal/store"
	"github.com/gustavo-camilo/dealer-copilot/tests/fixtures"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func inventoryRouter(st *store.Store) http.Handler {
	h := handler.NewInventoryHandler(st, testLogger())
	r := chi.NewRouter()
	r.Get("/api/tenants/{id}/inventory", h.ListInventory)
	r.Get("/api/tenants/{id}/sales", h.ListSales)
	r.Get("/api/tenants/{id}/snapshots", h.ListSnapshots)
	return r
}

func TestListInventoryEmpty(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)

	req := httptest.NewRequest("GET", "/api/tenants/"+tenantID+"/inventory", nil)
	rec := httptest.NewRecorder()
	inventoryRouter(st).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["total"])
}

func TestListInventoryWithData(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)
	fixtures.SeedVehicleHistory(t, db, tenantID, "1HGCV1F30LA012345", 23495, time.Now())
	fixtures.SeedVehicleHistory(t, db, tenantID, "STOCK_ABC123", 21000, time.Now())

	req := httptest.NewRequest("GET", "/api/tenants/"+tenantID+"/inventory", nil)
	rec := httptest.NewRecorder()
	inventoryRouter(st).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Vehicles []map[string]interface{} `json:"vehicles"`
		Total    int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Total)
	require.Len(t, resp.Vehicles, 2)
}

func TestListInventoryIsTenantScoped(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantA := fixtures.TestTenant(t, db)
	tenantB := fixtures.TestTenant(t, db)
	fixtures.SeedVehicleHistory(t, db, tenantA, "1HGCV1F30LA012345", 23495, time.Now())

	req := httptest.NewRequest("GET", "/api/tenants/"+tenantB+"/inventory", nil)
	rec := httptest.NewRecorder()
	inventoryRouter(st).ServeHTTP(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["total"], "tenant B must not see tenant A rows")
}

func TestListInventoryRejectsBadStatus(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	st := store.New(db, testLogger())
	tenantID := fixtures.TestTenant(t, db)

	req := httptest.NewRequest("GET", "/api/tenants/"+tenantID+"/inventory?status=bogus", nil)
	rec := httptest.NewRecorder()
	inventoryRouter(st).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
