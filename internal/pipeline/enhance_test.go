package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDetailMatches(t *testing.T) {
	listing := &domain.ParsedVehicle{Year: 2020, Make: "Honda", Model: "Accord"}

	assert.True(t, detailMatches(listing, &domain.ParsedVehicle{Year: 2020, Make: "Honda", Model: "Accord"}))
	assert.True(t, detailMatches(listing, &domain.ParsedVehicle{Year: 2020, Make: "honda"}))
	// A listing with gaps accepts whatever the detail page states.
	assert.True(t, detailMatches(&domain.ParsedVehicle{}, &domain.ParsedVehicle{Year: 2019, Make: "Honda"}))

	// Scenario: listing says 2020 Honda Accord, detail parse returns a 2019
	// Honda Civic page. The mismatch must be rejected.
	assert.False(t, detailMatches(listing, &domain.ParsedVehicle{Year: 2019, Make: "Honda", Model: "Civic"}))
	assert.False(t, detailMatches(listing, &domain.ParsedVehicle{Year: 2020, Make: "Toyota"}))
}

func TestMergeDetailFillsOnlyGaps(t *testing.T) {
	listing := &domain.ParsedVehicle{
		Year: 2020, Make: "Honda", Model: "Accord", Price: 23495,
	}
	mergeDetail(listing, &domain.ParsedVehicle{
		VIN: "1HGCV1F30LA012345", Mileage: 42000, Color: "Blue",
		Price: 99999, Model: "Civic",
	})

	assert.Equal(t, "1HGCV1F30LA012345", listing.VIN)
	assert.Equal(t, 42000, listing.Mileage)
	assert.Equal(t, "Blue", listing.Color)
	assert.Equal(t, 23495, listing.Price, "detail never overwrites a present price")
	assert.Equal(t, "Accord", listing.Model, "detail never overwrites a present model")
}

func TestDedupKeyPrefersStrongestSignal(t *testing.T) {
	assert.Equal(t, "vin:1HGCV1F30LA012345", dedupKey(&domain.ParsedVehicle{
		VIN: "1HGCV1F30LA012345", StockNumber: "A1", ListingURL: "https://x.test/1",
	}))
	assert.Equal(t, "stock:A1", dedupKey(&domain.ParsedVehicle{
		StockNumber: "A1", ListingURL: "https://x.test/1",
	}))
	assert.Equal(t, "url:https://x.test/1", dedupKey(&domain.ParsedVehicle{
		ListingURL: "https://x.test/1",
	}))
}

func TestDiscoverCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/inventory", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/used-cars", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	// Everything else 404s.
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(testLogger(), fetcher.Options{
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Timeout:      5 * time.Second,
		RateLimit:    time.Millisecond,
		Validate:     false,
	})
	p := &Pipeline{
		fetcher: f,
		logger:  testLogger(),
		cfg:     Config{DetailConcurrency: 5, HeadTimeout: time.Second},
	}

	got := p.discoverCandidates(context.Background(), srv.URL)
	require.Len(t, got, 3)
	assert.Equal(t, srv.URL, got[0], "the site root always leads")
	assert.Contains(t, got, srv.URL+"/inventory")
	assert.Contains(t, got, srv.URL+"/used-cars")
}
