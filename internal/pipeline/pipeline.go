// Package pipeline orchestrates one tenant's scrape end to end: discover
// candidate inventory pages, run the extractor cascade, enhance sparse
// listings from detail pages, enrich via VIN decode, then hand the set to
// the reconciliation engine and record the snapshot.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/extractor"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
	"github.com/gustavo-camilo/dealer-copilot/internal/htmlparser"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
	"github.com/gustavo-camilo/dealer-copilot/internal/reconcile"
	"github.com/gustavo-camilo/dealer-copilot/internal/tracing"
	"github.com/gustavo-camilo/dealer-copilot/internal/urlnorm"
	"github.com/gustavo-camilo/dealer-copilot/internal/vindecode"
)

// SnapshotStore persists run markers and structured logs.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap *domain.InventorySnapshot) error
	FinalizeSnapshot(ctx context.Context, snap *domain.InventorySnapshot) error
	InsertScrapingLog(ctx context.Context, l *domain.ScrapingLog)
}

// SitemapService resolves the tenant's path→lastmod mapping.
type SitemapService interface {
	GetOrFetch(ctx context.Context, tenantID, website string) (map[string]string, error)
}

// Broadcaster pushes run lifecycle events to live subscribers. May be nil.
type Broadcaster interface {
	Broadcast(event domain.ScrapeEvent)
}

// Config bounds pipeline fan-out.
type Config struct {
	DetailConcurrency int
	HeadTimeout       time.Duration
}

type Pipeline struct {
	store       SnapshotStore
	sitemaps    SitemapService
	fetcher     *fetcher.Fetcher
	extractor   *extractor.Client
	parser      *htmlparser.Parser
	vins        *vindecode.Client
	engine      *reconcile.Engine
	broadcaster Broadcaster
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

func New(
	store SnapshotStore,
	sitemaps SitemapService,
	f *fetcher.Fetcher,
	ex *extractor.Client,
	parser *htmlparser.Parser,
	vins *vindecode.Client,
	engine *reconcile.Engine,
	broadcaster Broadcaster,
	logger *slog.Logger,
	cfg Config,
) *Pipeline {
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 5
	}
	if cfg.HeadTimeout == 0 {
		cfg.HeadTimeout = 10 * time.Second
	}
	return &Pipeline{
		store:       store,
		sitemaps:    sitemaps,
		fetcher:     f,
		extractor:   ex,
		parser:      parser,
		vins:        vins,
		engine:      engine,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run executes the full pipeline for one tenant and returns its result
// envelope. Run never returns an error; failures are encoded in the result
// status and the persisted snapshot.
func (p *Pipeline) Run(ctx context.Context, tenant domain.Tenant) domain.TenantResult {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	defer span.End()

	start := p.now()
	result := domain.TenantResult{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Website:    tenant.Website,
		Status:     domain.SnapshotFailed,
	}

	website, err := urlnorm.Normalize(tenant.Website)
	if err != nil {
		result.Error = "invalid website url"
		result.DurationMs = time.Since(start).Milliseconds()
		p.store.InsertScrapingLog(ctx, &domain.ScrapingLog{
			TenantID: tenant.ID,
			Level:    domain.LogError,
			Message:  "invalid_website_url",
			Detail:   map[string]any{"website": tenant.Website},
		})
		metrics.PipelineRunsTotal.WithLabelValues(domain.SnapshotFailed).Inc()
		return result
	}

	snap := &domain.InventorySnapshot{TenantID: tenant.ID, StartedAt: start}
	if err := p.store.CreateSnapshot(ctx, snap); err != nil {
		result.Error = "snapshot create failed: " + err.Error()
		result.DurationMs = time.Since(start).Milliseconds()
		metrics.PipelineRunsTotal.WithLabelValues(domain.SnapshotFailed).Inc()
		return result
	}

	p.broadcast(domain.ScrapeEvent{Type: "scan_started", TenantID: tenant.ID, Timestamp: start})
	p.logger.Info("pipeline_started",
		slog.String("tenant_id", tenant.ID),
		slog.String("website", website),
	)

	// A sitemap failure only costs listing-date quality.
	sitemapPaths, err := p.sitemaps.GetOrFetch(ctx, tenant.ID, website)
	if err != nil {
		p.warn(ctx, tenant.ID, &snap.ID, "sitemap_unavailable", map[string]any{"error": err.Error()})
		sitemapPaths = map[string]string{}
	}

	candidates := p.discoverCandidates(ctx, website)
	if len(candidates) == 0 {
		p.finalize(ctx, snap, domain.SnapshotFailed, 0, nil, start)
		result.Error = "no candidate inventory pages found"
		result.DurationMs = snap.DurationMs
		return result
	}

	vehicles, pageHTML, method, tier, confidence := p.extract(ctx, tenant.ID, &snap.ID, candidates)
	if len(vehicles) == 0 {
		p.finalize(ctx, snap, domain.SnapshotFailed, 0, nil, start)
		result.Error = "no vehicles extracted"
		result.DurationMs = snap.DurationMs
		return result
	}

	p.enhance(ctx, tenant.ID, &snap.ID, vehicles)
	p.enrichVINs(ctx, vehicles)

	outcome := p.engine.Reconcile(ctx, reconcile.Input{
		TenantID:     tenant.ID,
		Vehicles:     vehicles,
		PageHTML:     pageHTML,
		SitemapPaths: sitemapPaths,
		SnapshotID:   &snap.ID,
	})

	status := domain.SnapshotSuccess
	if outcome.WriteFailures > 0 {
		status = domain.SnapshotPartial
	}
	raw, _ := json.Marshal(vehicles)
	p.finalize(ctx, snap, status, len(vehicles), raw, start)

	result.Status = status
	result.VehiclesFound = len(vehicles)
	result.NewVehicles = outcome.New
	result.UpdatedVehicles = outcome.Updated
	result.SoldVehicles = outcome.Sold
	result.DurationMs = snap.DurationMs
	result.ScraperMethod = method
	result.ScraperTier = tier
	result.ScraperConfidence = confidence

	p.broadcast(domain.ScrapeEvent{
		Type:          "scan_completed",
		TenantID:      tenant.ID,
		VehiclesFound: len(vehicles),
		NewVehicles:   outcome.New,
		SoldVehicles:  outcome.Sold,
		Status:        status,
		Timestamp:     p.now(),
	})
	p.logger.Info("pipeline_completed",
		slog.String("tenant_id", tenant.ID),
		slog.String("status", status),
		slog.Int("vehicles_found", len(vehicles)),
		slog.Int("new", outcome.New),
		slog.Int("updated", outcome.Updated),
		slog.Int("sold", outcome.Sold),
		slog.Int64("duration_ms", result.DurationMs),
	)
	return result
}

// extract runs the cascade over every candidate URL and merges the results,
// deduplicating listings that appear on more than one index page.
func (p *Pipeline) extract(ctx context.Context, tenantID string, snapshotID *int64, candidates []string) (vehicles []domain.ParsedVehicle, pageHTML, method, tier, confidence string) {
	seen := make(map[string]bool)
	methods := make(map[string]bool)

	for _, url := range candidates {
		outcome := p.extractor.Extract(ctx, url)
		if len(outcome.Vehicles) == 0 {
			p.warn(ctx, tenantID, snapshotID, "candidate_url_empty", map[string]any{"url": url})
			continue
		}
		methods[outcome.Method] = true
		if tier == "" {
			tier = outcome.Tier
			confidence = outcome.Confidence
		}
		if pageHTML == "" {
			pageHTML = outcome.HTML
		}
		for _, v := range outcome.Vehicles {
			key := dedupKey(&v)
			if seen[key] {
				continue
			}
			seen[key] = true
			vehicles = append(vehicles, v)
		}
	}

	switch {
	case len(methods) > 1:
		method = domain.MethodMixed
	default:
		for m := range methods {
			method = m
		}
	}
	return vehicles, pageHTML, method, tier, confidence
}

// dedupKey prefers the strongest stable signal available.
func dedupKey(v *domain.ParsedVehicle) string {
	switch {
	case domain.ValidVIN(v.VIN):
		return "vin:" + v.VIN
	case v.StockNumber != "":
		return "stock:" + v.StockNumber
	case v.ListingURL != "":
		return "url:" + v.ListingURL
	default:
		raw, _ := json.Marshal(v)
		return "attrs:" + string(raw)
	}
}

func (p *Pipeline) finalize(ctx context.Context, snap *domain.InventorySnapshot, status string, found int, raw []byte, start time.Time) {
	snap.Status = status
	snap.VehiclesFound = found
	snap.DurationMs = time.Since(start).Milliseconds()
	snap.RawData = raw
	if err := p.store.FinalizeSnapshot(ctx, snap); err != nil {
		p.logger.Error("snapshot_finalize_failed",
			slog.String("tenant_id", snap.TenantID),
			slog.String("error", err.Error()),
		)
	}
	metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	metrics.PipelineDuration.Observe(float64(snap.DurationMs) / 1000)
}

func (p *Pipeline) warn(ctx context.Context, tenantID string, snapshotID *int64, message string, detail map[string]any) {
	p.logger.Warn(message,
		slog.String("tenant_id", tenantID),
		slog.Any("detail", detail),
	)
	p.store.InsertScrapingLog(ctx, &domain.ScrapingLog{
		TenantID:   tenantID,
		SnapshotID: snapshotID,
		Level:      domain.LogWarn,
		Message:    message,
		Detail:     detail,
	})
}

func (p *Pipeline) broadcast(event domain.ScrapeEvent) {
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(event)
	}
}
