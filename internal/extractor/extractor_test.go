package extractor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
	"github.com/gustavo-camilo/dealer-copilot/internal/htmlparser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testFetcher() *fetcher.Fetcher {
	return fetcher.New(testLogger(), fetcher.Options{
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Timeout:      5 * time.Second,
		RateLimit:    time.Millisecond,
		Validate:     false,
	})
}

func rendererServer(t *testing.T, resp RendererResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["url"])
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rendererVehicles() []RendererVehicle {
	return []RendererVehicle{
		{Year: 2020, Make: "Honda", Model: "Accord", Price: 23495, Mileage: 42000,
			VIN: "1HGCV1F30LA012345", DetailURL: "https://dealer.test/accord"},
	}
}

func TestExtractPrimaryWins(t *testing.T) {
	primary := rendererServer(t, RendererResponse{
		Success: true, Vehicles: rendererVehicles(), Tier: "stealth-1", Confidence: "high",
	})
	secondary := rendererServer(t, RendererResponse{Success: true, Vehicles: rendererVehicles()})

	c := New(Config{PrimaryURL: primary.URL, SecondaryURL: secondary.URL},
		testFetcher(), htmlparser.New(testLogger()), testLogger())

	out := c.Extract(context.Background(), "https://dealer.test/inventory")
	require.Len(t, out.Vehicles, 1)
	assert.Equal(t, domain.MethodPrimary, out.Method)
	assert.Equal(t, "stealth-1", out.Tier)
	assert.Equal(t, "high", out.Confidence)
	assert.Equal(t, "1HGCV1F30LA012345", out.Vehicles[0].VIN)
}

func TestExtractFallsToSecondaryOnEmptyPrimary(t *testing.T) {
	primary := rendererServer(t, RendererResponse{Success: true, Vehicles: nil})
	secondary := rendererServer(t, RendererResponse{
		Success: true, Vehicles: rendererVehicles(), Tier: "headless-2", Confidence: "medium",
	})

	c := New(Config{PrimaryURL: primary.URL, SecondaryURL: secondary.URL},
		testFetcher(), htmlparser.New(testLogger()), testLogger())

	out := c.Extract(context.Background(), "https://dealer.test/inventory")
	require.Len(t, out.Vehicles, 1)
	assert.Equal(t, domain.MethodSecondary, out.Method)
	assert.Equal(t, "headless-2", out.Tier)
}

func TestExtractHTMLFallback(t *testing.T) {
	page := `<div class="card">
	  <a href="/inventory/2020-honda-accord">2020 Honda Accord</a>
	  <p>$23,495 42,000 mi</p>
	</div>` + strings.Repeat("<!-- pad -->", 40)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer site.Close()

	// No renderers configured at all.
	c := New(Config{}, testFetcher(), htmlparser.New(testLogger()), testLogger())

	out := c.Extract(context.Background(), site.URL)
	assert.Equal(t, domain.MethodHTMLParser, out.Method)
	require.Len(t, out.Vehicles, 1)
	assert.Equal(t, 2020, out.Vehicles[0].Year)
	assert.NotEmpty(t, out.HTML)
}

func TestExtractRendererUnavailableFallsThrough(t *testing.T) {
	// Primary endpoint refuses connections.
	dead := httptest.NewServer(nil)
	dead.Close()

	page := `<section>2019 Toyota Camry $21,000</section>`
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer site.Close()

	c := New(Config{PrimaryURL: dead.URL}, testFetcher(), htmlparser.New(testLogger()), testLogger())

	out := c.Extract(context.Background(), site.URL)
	assert.Equal(t, domain.MethodHTMLParser, out.Method)
	require.Len(t, out.Vehicles, 1)
}

func TestFromRendererValidation(t *testing.T) {
	v := fromRenderer(RendererVehicle{
		VIN: "bad", Year: 1890, Price: 100, Mileage: -5,
		Make: " Honda ", Model: "Accord",
	})
	assert.Empty(t, v.VIN)
	assert.Zero(t, v.Year)
	assert.Zero(t, v.Price)
	assert.Zero(t, v.Mileage)
	assert.Equal(t, "Honda", v.Make)
}
