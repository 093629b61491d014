package sitemap

import (
	"context"
	"fmt"
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
)

type memCacheStore struct {
	rows map[string]*domain.SitemapCache
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{rows: make(map[string]*domain.SitemapCache)}
}

func (m *memCacheStore) GetSitemapCache(_ context.Context, tenantID string) (*domain.SitemapCache, error) {
	return m.rows[tenantID], nil
}

func (m *memCacheStore) UpsertSitemapCache(_ context.Context, c *domain.SitemapCache) error {
	m.rows[c.TenantID] = c
	return nil
}

func pad(s string) string {
	return s + strings.Repeat("<!-- padding to clear the soft-error floor -->", 20)
}

func testService(t *testing.T, handler http.Handler) (*Service, *memCacheStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	f := fetcher.New(logger, fetcher.Options{
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Timeout:      5 * time.Second,
		RateLimit:    time.Millisecond,
		Validate:     false,
	})
	store := newMemCacheStore()
	return New(f, store, logger, 24*time.Hour, time.Second), store, srv
}

func TestGetOrFetchParsesSitemap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/sitemap.xml\n", "http://"+r.Host)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pad(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://x.test/inventory/2020-honda-accord</loc><lastmod>2025-11-03T10:00:00Z</lastmod></url>
  <url><loc>http://x.test/blog/winter-tires</loc><lastmod>2025-10-01</lastmod></url>
  <url><loc>http://x.test/used-ford-f150</loc><lastmod>2025-10-21</lastmod></url>
  <url><loc>http://x.test/about</loc><lastmod>2025-01-01</lastmod></url>
</urlset>`))
	})
	svc, store, srv := testService(t, mux)

	paths, err := svc.GetOrFetch(context.Background(), "t1", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"/inventory/2020-honda-accord": "2025-11-03",
		"/used-ford-f150":              "2025-10-21",
	}, paths)

	row := store.rows["t1"]
	require.NotNil(t, row)
	assert.Equal(t, domain.SitemapSuccess, row.FetchStatus)
	assert.Equal(t, 2, row.URLCount)
	assert.WithinDuration(t, row.CachedAt.Add(24*time.Hour), row.ExpiresAt, time.Second)
}

func TestGetOrFetchRecursesIndex(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Sitemap: %s/sitemap_index.xml\n", base)
	})
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pad(fmt.Sprintf(`<sitemapindex>
  <sitemap><loc>%s/inventory-sitemap.xml</loc></sitemap>
  <sitemap><loc>%s/blog-sitemap.xml</loc></sitemap>
</sitemapindex>`, base, base)))
	})
	mux.HandleFunc("/inventory-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pad(`<urlset>
  <url><loc>http://x.test/vehicle/123</loc><lastmod>2025-09-09</lastmod></url>
</urlset>`))
	})
	mux.HandleFunc("/blog-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		t.Error("blog child sitemap must not be fetched")
	})
	svc, _, srv := testService(t, mux)
	base = srv.URL

	paths, err := svc.GetOrFetch(context.Background(), "t1", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/vehicle/123": "2025-09-09"}, paths)
}

func TestGetOrFetchUsesFreshCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected fetch of %s with a fresh cache row", r.URL.Path)
	})
	svc, store, srv := testService(t, mux)

	now := time.Now()
	store.rows["t1"] = &domain.SitemapCache{
		TenantID:    "t1",
		Paths:       map[string]string{"/vehicle/9": "2025-08-08"},
		CachedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
		FetchStatus: domain.SitemapSuccess,
	}

	paths, err := svc.GetOrFetch(context.Background(), "t1", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/vehicle/9": "2025-08-08"}, paths)
}

func TestGetOrFetchCachesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	svc, store, srv := testService(t, mux)

	paths, err := svc.GetOrFetch(context.Background(), "t1", srv.URL)
	require.NoError(t, err)
	assert.Empty(t, paths)

	row := store.rows["t1"]
	require.NotNil(t, row)
	assert.Equal(t, domain.SitemapNotFound, row.FetchStatus)

	// Second call inside the TTL serves the cached failure without refetching.
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		t.Error("cached failure must not be refetched")
	})
	paths, err = svc.GetOrFetch(context.Background(), "t1", srv.URL)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestIsVehiclePath(t *testing.T) {
	assert.True(t, IsVehiclePath("/inventory/2020-accord"))
	assert.True(t, IsVehiclePath("/used-toyota-camry"))
	assert.True(t, IsVehiclePath("/cars/f150"))
	assert.True(t, IsVehiclePath("/2021-ford-f150-for-sale"))
	assert.True(t, IsVehiclePath("/vehicle/abc"))
	assert.True(t, IsVehiclePath("/detail/55"))
	assert.True(t, IsVehiclePath("/stock/ABC123"))

	assert.False(t, IsVehiclePath("/blog/used-car-tips"))
	assert.False(t, IsVehiclePath("/inventory/search"))
	assert.False(t, IsVehiclePath("/about"))
	assert.False(t, IsVehiclePath("/cars/category/suv"))
	assert.False(t, IsVehiclePath("/inventory/page/2"))
}
