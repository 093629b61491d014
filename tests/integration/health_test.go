package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/handler"
	"github.com/gustavo-camilo/dealer-copilot/tests/fixtures"
)

func TestHealthEndpoint(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)

	healthHandler := handler.NewHealthHandler(db)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handler.HealthResponse
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Contains(t, []string{"healthy", "degraded"}, resp.Status)
	assert.Contains(t, resp.Checks["database"], "healthy")
	assert.Equal(t, "healthy", resp.Checks["schema"])
	assert.Contains(t, []string{"idle", "active", "stale"}, resp.Checks["scraping"])
}

func TestReadyAndLive(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)

	healthHandler := handler.NewHealthHandler(db)

	rec := httptest.NewRecorder()
	healthHandler.Ready(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	healthHandler.Live(rec, httptest.NewRequest("GET", "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
