package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// GetSitemapCache returns the tenant's cached mapping, or nil when none
// exists.
func (s *Store) GetSitemapCache(ctx context.Context, tenantID string) (*domain.SitemapCache, error) {
	s.track("select", "sitemap_cache")
	query := `
		SELECT tenant_id, website, paths, url_count, cached_at, expires_at,
		       fetch_status, COALESCE(error_msg, '')
		FROM sitemap_cache
		WHERE tenant_id = $1
	`
	var c domain.SitemapCache
	var paths []byte
	err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&c.TenantID, &c.Website, &paths, &c.URLCount, &c.CachedAt, &c.ExpiresAt,
		&c.FetchStatus, &c.ErrorMsg,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sitemap cache: %w", err)
	}
	c.Paths = make(map[string]string)
	if len(paths) > 0 {
		if err := json.Unmarshal(paths, &c.Paths); err != nil {
			return nil, fmt.Errorf("decode sitemap paths: %w", err)
		}
	}
	return &c, nil
}

// UpsertSitemapCache writes the tenant's single cache row.
func (s *Store) UpsertSitemapCache(ctx context.Context, c *domain.SitemapCache) error {
	s.track("upsert", "sitemap_cache")
	paths, err := json.Marshal(c.Paths)
	if err != nil {
		return fmt.Errorf("encode sitemap paths: %w", err)
	}
	if c.Paths == nil {
		paths = []byte("{}")
	}

	query := `
		INSERT INTO sitemap_cache (
			tenant_id, website, paths, url_count, cached_at, expires_at, fetch_status, error_msg
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			website = EXCLUDED.website,
			paths = EXCLUDED.paths,
			url_count = EXCLUDED.url_count,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at,
			fetch_status = EXCLUDED.fetch_status,
			error_msg = EXCLUDED.error_msg
	`
	_, err = s.db.Exec(ctx, query,
		c.TenantID, c.Website, paths, c.URLCount, c.CachedAt, c.ExpiresAt,
		c.FetchStatus, nullStr(c.ErrorMsg),
	)
	if err != nil {
		return fmt.Errorf("upsert sitemap cache: %w", err)
	}
	return nil
}
