// Package sitemap discovers and caches a dealer site's sitemap so the
// listing-date resolver can map a detail-page path to a lastmod date without
// refetching XML on every run.
package sitemap

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
	"github.com/gustavo-camilo/dealer-copilot/internal/urlnorm"
)

// commonPaths are probed with HEAD requests in addition to robots.txt
// directives. Dealer platforms ship sitemaps under a handful of names.
var commonPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/product-sitemap.xml",
	"/inventory-sitemap.xml",
	"/vehicle-sitemap.xml",
	"/wp-sitemap.xml",
}

var (
	childRelevant = regexp.MustCompile(`(?i)inventory|vehicle|car`)

	vehiclePathMarkers = []string{
		"/vehicle", "/inventory/", "/used-", "/cars/", "-for-sale", "/detail", "/stock",
	}
	excludedPath = regexp.MustCompile(`(?i)search|category|tag|page/|blog|news|about|contact`)
)

// CacheStore persists one sitemap mapping per tenant.
type CacheStore interface {
	GetSitemapCache(ctx context.Context, tenantID string) (*domain.SitemapCache, error)
	UpsertSitemapCache(ctx context.Context, c *domain.SitemapCache) error
}

type Service struct {
	fetcher     *fetcher.Fetcher
	store       CacheStore
	logger      *slog.Logger
	ttl         time.Duration
	headTimeout time.Duration
	now         func() time.Time
}

func New(f *fetcher.Fetcher, store CacheStore, logger *slog.Logger, ttl, headTimeout time.Duration) *Service {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if headTimeout == 0 {
		headTimeout = 10 * time.Second
	}
	return &Service{
		fetcher:     f,
		store:       store,
		logger:      logger,
		ttl:         ttl,
		headTimeout: headTimeout,
		now:         time.Now,
	}
}

// GetOrFetch returns the path→lastmod mapping for the tenant's site,
// fetching and caching it when no fresh row exists. Fetch errors are cached
// with their status so a broken site is not hammered within the TTL.
func (s *Service) GetOrFetch(ctx context.Context, tenantID, website string) (map[string]string, error) {
	cached, err := s.store.GetSitemapCache(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if cached != nil && !cached.Expired(now) {
		if cached.FetchStatus == domain.SitemapSuccess {
			metrics.SitemapCacheLookups.WithLabelValues("hit").Inc()
			return cached.Paths, nil
		}
		// A cached failure is still a hit: do not refetch within the TTL.
		metrics.SitemapCacheLookups.WithLabelValues("error_cached").Inc()
		return map[string]string{}, nil
	}
	metrics.SitemapCacheLookups.WithLabelValues("miss").Inc()

	paths, status, errMsg := s.fetch(ctx, website)
	entry := &domain.SitemapCache{
		TenantID:    tenantID,
		Website:     website,
		Paths:       paths,
		URLCount:    len(paths),
		CachedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
		FetchStatus: status,
		ErrorMsg:    errMsg,
	}
	if err := s.store.UpsertSitemapCache(ctx, entry); err != nil {
		s.logger.Warn("sitemap_cache_write_failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	}
	return paths, nil
}

// fetch discovers and downloads every relevant sitemap for website.
func (s *Service) fetch(ctx context.Context, website string) (map[string]string, string, string) {
	origin, err := urlnorm.Origin(website)
	if err != nil {
		return map[string]string{}, domain.SitemapError, err.Error()
	}

	sitemapURLs := s.discover(ctx, origin)
	if len(sitemapURLs) == 0 {
		return map[string]string{}, domain.SitemapNotFound, ""
	}

	paths := make(map[string]string)
	var lastErr string
	fetched := 0
	for _, u := range sitemapURLs {
		if err := s.collect(ctx, u, paths, 0); err != nil {
			lastErr = err.Error()
			continue
		}
		fetched++
	}
	if fetched == 0 {
		return map[string]string{}, domain.SitemapError, lastErr
	}

	s.logger.Info("sitemap_fetched",
		slog.String("origin", origin),
		slog.Int("sitemaps", fetched),
		slog.Int("vehicle_urls", len(paths)),
	)
	return paths, domain.SitemapSuccess, ""
}

// discover reads robots.txt Sitemap directives and probes the common paths.
func (s *Service) discover(ctx context.Context, origin string) []string {
	seen := make(map[string]bool)
	var found []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			found = append(found, u)
		}
	}

	res := s.fetcher.Fetch(ctx, origin+"/robots.txt")
	if res.Success {
		for _, line := range strings.Split(res.Body, "\n") {
			line = strings.TrimSpace(line)
			if rest, ok := cutPrefixFold(line, "sitemap:"); ok {
				add(strings.TrimSpace(rest))
			}
		}
	}

	for _, p := range commonPaths {
		probe := origin + p
		if seen[probe] {
			continue
		}
		hctx, cancel := context.WithTimeout(ctx, s.headTimeout)
		head := s.fetcher.Head(hctx, probe)
		cancel()
		if head.Success {
			add(probe)
		}
	}
	return found
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

// collect fetches one sitemap and folds its vehicle URLs into paths,
// recursing into index children that look inventory-related, down to two
// levels below the sitemap it started from.
func (s *Service) collect(ctx context.Context, sitemapURL string, paths map[string]string, depth int) error {
	if depth > 2 {
		return nil
	}
	res := s.fetcher.Fetch(ctx, sitemapURL)
	if !res.Success {
		return res.Err
	}
	body := []byte(res.Body)

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, child := range idx.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" || !childRelevant.MatchString(loc) {
				continue
			}
			if err := s.collect(ctx, loc, paths, depth+1); err != nil {
				s.logger.Debug("sitemap_child_failed",
					slog.String("url", loc),
					slog.String("error", err.Error()),
				)
			}
		}
		return nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return err
	}
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		path := urlPath(loc)
		if !IsVehiclePath(path) {
			continue
		}
		lastmod := strings.TrimSpace(entry.LastMod)
		if lastmod == "" {
			continue
		}
		paths[path] = normalizeLastmod(lastmod)
	}
	return nil
}

// IsVehiclePath reports whether path looks like a vehicle detail page.
func IsVehiclePath(path string) bool {
	lower := strings.ToLower(path)
	if excludedPath.MatchString(lower) {
		return false
	}
	for _, marker := range vehiclePathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

// normalizeLastmod trims a W3C datetime down to its date portion.
func normalizeLastmod(lastmod string) string {
	if len(lastmod) >= 10 {
		if _, err := time.Parse("2006-01-02", lastmod[:10]); err == nil {
			return lastmod[:10]
		}
	}
	return lastmod
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
