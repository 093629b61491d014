// Package reconcile diffs a run's parsed vehicles against the tenant's
// durable history: new listings are inserted with a resolved listing date,
// reappearing ones are refreshed, price moves are appended to the price
// history, and listings gone for long enough are flipped to sold with a
// derived sales record.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/identifier"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
)

// Store is the slice of persistence the engine needs.
type Store interface {
	GetActiveVehicle(ctx context.Context, tenantID, identifier string) (*domain.VehicleHistory, error)
	ListActiveVehicles(ctx context.Context, tenantID string) ([]domain.VehicleHistory, error)
	InsertVehicleHistory(ctx context.Context, v *domain.VehicleHistory) error
	UpdateVehicleHistory(ctx context.Context, v *domain.VehicleHistory) error
	MarkVehicleSold(ctx context.Context, tenantID string, id int64) error
	InsertSalesRecord(ctx context.Context, r *domain.SalesRecord) (bool, error)
	InsertScrapingLog(ctx context.Context, l *domain.ScrapingLog)
}

// DateResolver derives a listing date with provenance for a first sighting.
// now is the engine's clock reading for the run, so estimated dates and
// last_seen_at stamps come from the same instant.
type DateResolver interface {
	Resolve(v *domain.ParsedVehicle, html string, sitemapPaths map[string]string, now time.Time) domain.ListingDate
}

// Broadcaster pushes run events to live subscribers. May be nil.
type Broadcaster interface {
	Broadcast(event domain.ScrapeEvent)
}

// Input is one tenant's reconciliation workload. Vehicles must already be
// detail-enhanced and VIN-enriched by the pipeline.
type Input struct {
	TenantID     string
	Vehicles     []domain.ParsedVehicle
	PageHTML     string
	SitemapPaths map[string]string
	SnapshotID   *int64
}

// Outcome counts what one reconciliation run did.
type Outcome struct {
	New           int
	Updated       int
	Sold          int
	Skipped       int
	WriteFailures int
}

type Engine struct {
	store       Store
	dates       DateResolver
	broadcaster Broadcaster
	logger      *slog.Logger
	soldAfter   time.Duration
	now         func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithSoldAbsenceDays sets how long a listing must be unseen before it is
// treated as sold.
func WithSoldAbsenceDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.soldAfter = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithBroadcaster attaches a live event sink.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) {
		e.broadcaster = b
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store Store, dates DateResolver, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		dates:     dates,
		logger:    logger,
		soldAfter: 48 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile processes the parsed set in insertion order and then runs the
// disappearance sweep. Per-vehicle persistence failures are logged, counted,
// and skipped; they never abort the run.
func (e *Engine) Reconcile(ctx context.Context, in Input) Outcome {
	now := e.now()
	out := Outcome{}
	gen := identifier.NewGenerator()

	// Every identifier a current vehicle could answer to, for the sweep.
	currentIDs := make(map[string]bool)

	for i := range in.Vehicles {
		v := &in.Vehicles[i]
		id, ok := gen.Identify(v)
		if !ok {
			out.Skipped++
			metrics.VehiclesReconciled.WithLabelValues("skipped").Inc()
			e.warn(ctx, in, "vehicle_skipped_no_identifier", map[string]any{
				"year": v.Year, "make": v.Make, "url": v.ListingURL,
			})
			continue
		}
		for _, cand := range candidateIDs(v, id) {
			currentIDs[cand] = true
		}

		existing, err := e.lookup(ctx, in.TenantID, v, id)
		if err != nil {
			out.WriteFailures++
			e.warn(ctx, in, "vehicle_lookup_failed", map[string]any{
				"identifier": id, "error": err.Error(),
			})
			continue
		}

		if existing == nil {
			if err := e.insert(ctx, in, v, id, now); err != nil {
				out.WriteFailures++
				e.warn(ctx, in, "vehicle_insert_failed", map[string]any{
					"identifier": id, "error": err.Error(),
				})
				continue
			}
			out.New++
			metrics.VehiclesReconciled.WithLabelValues("new").Inc()
			continue
		}

		currentIDs[existing.Identifier] = true
		if err := e.update(ctx, in, v, existing, now); err != nil {
			out.WriteFailures++
			e.warn(ctx, in, "vehicle_update_failed", map[string]any{
				"identifier": existing.Identifier, "error": err.Error(),
			})
			continue
		}
		out.Updated++
		metrics.VehiclesReconciled.WithLabelValues("updated").Inc()
	}

	sold, failures := e.sweep(ctx, in, currentIDs, now)
	out.Sold = sold
	out.WriteFailures += failures

	return out
}

// candidateIDs lists every identifier this vehicle could be stored under.
func candidateIDs(v *domain.ParsedVehicle, assigned string) []string {
	ids := []string{assigned}
	if domain.ValidVIN(v.VIN) && v.VIN != assigned {
		ids = append(ids, v.VIN)
	}
	if v.StockNumber != "" {
		if stockID, ok := stockIdentifier(v); ok && stockID != assigned {
			ids = append(ids, stockID)
		}
	}
	if attrID, ok := attributeIdentifier(v); ok && attrID != assigned {
		ids = append(ids, attrID)
	}
	return ids
}

func stockIdentifier(v *domain.ParsedVehicle) (string, bool) {
	stripped := *v
	stripped.VIN = ""
	id, ok := identifier.NewGenerator().Identify(&stripped)
	return id, ok
}

func attributeIdentifier(v *domain.ParsedVehicle) (string, bool) {
	stripped := *v
	stripped.VIN = ""
	stripped.StockNumber = ""
	id, ok := identifier.NewGenerator().Identify(&stripped)
	return id, ok
}

// lookup finds the active row for v. When the assigned identifier misses,
// the fallback identifiers the listing answered to on earlier runs are
// tried, which is what lets a VIN-less row be found once the VIN appears.
// A collision-salted identifier never falls back to its bare base: that
// base belongs to an earlier vehicle in the run.
func (e *Engine) lookup(ctx context.Context, tenantID string, v *domain.ParsedVehicle, assigned string) (*domain.VehicleHistory, error) {
	candidates := candidateIDs(v, assigned)
	if attrID, ok := attributeIdentifier(v); ok && assigned != attrID && strings.HasPrefix(assigned, attrID+"_") {
		filtered := candidates[:0]
		for _, id := range candidates {
			if id != attrID {
				filtered = append(filtered, id)
			}
		}
		candidates = filtered
	}
	for _, id := range candidates {
		existing, err := e.store.GetActiveVehicle(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, nil
}

func (e *Engine) insert(ctx context.Context, in Input, v *domain.ParsedVehicle, id string, now time.Time) error {
	resolved := e.dates.Resolve(v, in.PageHTML, in.SitemapPaths, now)

	row := &domain.VehicleHistory{
		TenantID:              in.TenantID,
		Identifier:            id,
		StockNumber:           v.StockNumber,
		Year:                  v.Year,
		Make:                  v.Make,
		Model:                 v.Model,
		Trim:                  v.Trim,
		Color:                 v.Color,
		Mileage:               v.Mileage,
		Price:                 v.Price,
		ListingURL:            v.ListingURL,
		ImageURL:              v.ImageURL,
		ImageURLs:             v.ImageURLs,
		Status:                domain.StatusActive,
		FirstSeenAt:           resolved.Date,
		LastSeenAt:            now,
		PriceHistory:          []domain.PricePoint{},
		ListingDateConfidence: resolved.Confidence,
		ListingDateSource:     resolved.Source,
	}
	if v.Price != 0 {
		row.PriceHistory = append(row.PriceHistory, domain.PricePoint{Date: now, Price: v.Price})
	}
	if err := e.store.InsertVehicleHistory(ctx, row); err != nil {
		return err
	}

	e.logger.Info("vehicle_first_seen",
		slog.String("tenant_id", in.TenantID),
		slog.String("identifier", id),
		slog.String("listing_date_source", resolved.Source),
	)
	return nil
}

func (e *Engine) update(ctx context.Context, in Input, v *domain.ParsedVehicle, existing *domain.VehicleHistory, now time.Time) error {
	existing.LastSeenAt = now

	// Incoming values win only when non-empty; a sparse reparse must not
	// erase what an earlier richer parse stored.
	if v.StockNumber != "" {
		existing.StockNumber = v.StockNumber
	}
	if v.Year != 0 {
		existing.Year = v.Year
	}
	if v.Make != "" {
		existing.Make = v.Make
	}
	if v.Model != "" {
		existing.Model = v.Model
	}
	if v.Trim != "" {
		existing.Trim = v.Trim
	}
	if v.Mileage != 0 {
		existing.Mileage = v.Mileage
	}
	if v.Color != "" {
		existing.Color = v.Color
	}
	if v.ListingURL != "" {
		existing.ListingURL = v.ListingURL
	}
	if v.ImageURL != "" {
		existing.ImageURL = v.ImageURL
	}
	if len(v.ImageURLs) > 0 {
		existing.ImageURLs = v.ImageURLs
	}

	if v.Price != 0 && v.Price != existing.Price {
		existing.PriceHistory = append(existing.PriceHistory, domain.PricePoint{Date: now, Price: v.Price})
		existing.Price = v.Price
		e.logger.Info("vehicle_price_changed",
			slog.String("tenant_id", in.TenantID),
			slog.String("identifier", existing.Identifier),
			slog.Int("price", v.Price),
		)
	}

	// Identifier upgrade: a synthetic key is rewritten in place the first
	// time the real VIN shows up. The upgrade is monotone; a VIN is never
	// replaced.
	if domain.ValidVIN(v.VIN) && identifier.IsSynthetic(existing.Identifier) {
		e.logger.Info("identifier_upgraded",
			slog.String("tenant_id", in.TenantID),
			slog.String("from", existing.Identifier),
			slog.String("to", v.VIN),
		)
		existing.Identifier = v.VIN
	}

	return e.store.UpdateVehicleHistory(ctx, existing)
}

// sweep flips every active row unseen past the grace window, and absent
// from the current run, to sold.
func (e *Engine) sweep(ctx context.Context, in Input, currentIDs map[string]bool, now time.Time) (sold, failures int) {
	active, err := e.store.ListActiveVehicles(ctx, in.TenantID)
	if err != nil {
		e.warn(ctx, in, "sweep_list_failed", map[string]any{"error": err.Error()})
		return 0, 1
	}

	threshold := now.Add(-e.soldAfter)
	today := now.Truncate(24 * time.Hour)

	for i := range active {
		row := &active[i]
		if !row.LastSeenAt.Before(threshold) {
			continue
		}
		if currentIDs[row.Identifier] {
			continue
		}

		if err := e.store.MarkVehicleSold(ctx, in.TenantID, row.ID); err != nil {
			failures++
			e.warn(ctx, in, "mark_sold_failed", map[string]any{
				"identifier": row.Identifier, "error": err.Error(),
			})
			continue
		}

		record := &domain.SalesRecord{
			TenantID:   in.TenantID,
			Identifier: row.Identifier,
			Year:       row.Year,
			Make:       row.Make,
			Model:      row.Model,
			SaleDate:   today,
			DaysToSale: int(today.Sub(row.FirstSeenAt.Truncate(24*time.Hour)).Hours() / 24),
		}
		if row.Price != 0 {
			price := row.Price
			record.SalePrice = &price
		}
		if _, err := e.store.InsertSalesRecord(ctx, record); err != nil {
			failures++
			e.warn(ctx, in, "sales_record_failed", map[string]any{
				"identifier": row.Identifier, "error": err.Error(),
			})
			continue
		}

		sold++
		metrics.VehiclesReconciled.WithLabelValues("sold").Inc()
		e.logger.Info("vehicle_sold",
			slog.String("tenant_id", in.TenantID),
			slog.String("identifier", row.Identifier),
			slog.Int("days_to_sale", record.DaysToSale),
		)
		if e.broadcaster != nil {
			e.broadcaster.Broadcast(domain.ScrapeEvent{
				Type:       "vehicle_sold",
				TenantID:   in.TenantID,
				Identifier: row.Identifier,
				Timestamp:  now,
			})
		}
	}
	return sold, failures
}

// warn writes a structured warning both to the process log and to the
// persisted scraping log for the run.
func (e *Engine) warn(ctx context.Context, in Input, message string, detail map[string]any) {
	e.logger.Warn(message,
		slog.String("tenant_id", in.TenantID),
		slog.Any("detail", detail),
	)
	e.store.InsertScrapingLog(ctx, &domain.ScrapingLog{
		TenantID:   in.TenantID,
		SnapshotID: in.SnapshotID,
		Level:      domain.LogWarn,
		Message:    message,
		Detail:     detail,
	})
}
