package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant lifecycle status
const (
	TenantTrial     = "trial"
	TenantActive    = "active"
	TenantSuspended = "suspended"
	TenantCancelled = "cancelled"
)

// Subscription tiers
const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// Tenant is a dealership account. The engine only reads tenants; they are
// created and mutated by admin tooling.
type Tenant struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Website      string       `json:"website"`
	Status       string       `json:"status"`
	Tier         string       `json:"tier"`
	CostSettings CostSettings `json:"cost_settings"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CostSettings holds per-dealer cost assumptions used by downstream
// profitability views. The engine stores but never interprets them.
type CostSettings struct {
	AuctionFeePercent   float64 `json:"auction_fee_percent"`
	ReconditioningCost  float64 `json:"reconditioning_cost"`
	TransportCost       float64 `json:"transport_cost"`
	FloorPlanRate       float64 `json:"floor_plan_rate"`
	TargetMarginPercent float64 `json:"target_margin_percent"`
	TargetDaysToSale    int     `json:"target_days_to_sale"`
}

// ParsedVehicle is a single listing as extracted in one run. It lives only
// for the duration of a pipeline invocation.
type ParsedVehicle struct {
	VIN         string   `json:"vin,omitempty"`
	StockNumber string   `json:"stock_number,omitempty"`
	Year        int      `json:"year,omitempty"`
	Make        string   `json:"make,omitempty"`
	Model       string   `json:"model,omitempty"`
	Trim        string   `json:"trim,omitempty"`
	Color       string   `json:"color,omitempty"`
	Mileage     int      `json:"mileage,omitempty"`
	Price       int      `json:"price,omitempty"`
	ListingURL  string   `json:"listing_url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	// ImageDate is derived from photo filenames when at least two images
	// carry dates inside a 7-day window.
	ImageDate *time.Time `json:"image_date,omitempty"`
}

// HasCriticalFields reports whether the listing carries everything the
// reconciler needs without a detail-page fetch.
func (v *ParsedVehicle) HasCriticalFields() bool {
	return v.VIN != "" && v.Year != 0 && v.Make != "" && v.Model != "" &&
		v.Price != 0 && v.Mileage != 0
}

// Listing date confidence levels
const (
	ConfidenceHigh      = "high"
	ConfidenceMedium    = "medium"
	ConfidenceLow       = "low"
	ConfidenceEstimated = "estimated"
)

// Listing date sources
const (
	SourceImageFilename = "image_filename"
	SourceJSONLD        = "json_ld"
	SourceMetaTag       = "meta_tag"
	SourceSitemap       = "sitemap"
	SourceVisibleText   = "visible_text"
	SourceHTTPHeader    = "http_header"
	SourceFirstScan     = "first_scan"
)

// ListingDate is a resolved first-listed date with provenance.
type ListingDate struct {
	Date       time.Time `json:"date"`
	Confidence string    `json:"confidence"`
	Source     string    `json:"source"`
}

// Vehicle history status
const (
	StatusActive = "active"
	StatusSold   = "sold"
)

// PricePoint is one observation in a vehicle's price history.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price int       `json:"price"`
}

// VehicleHistory is the durable per-tenant record of a vehicle ever seen.
// At most one active row exists per (tenant, identifier); sold rows are
// terminal and never revived.
type VehicleHistory struct {
	ID                    int64        `json:"id"`
	TenantID              string       `json:"tenant_id"`
	Identifier            string       `json:"identifier"`
	StockNumber           string       `json:"stock_number,omitempty"`
	Year                  int          `json:"year,omitempty"`
	Make                  string       `json:"make,omitempty"`
	Model                 string       `json:"model,omitempty"`
	Trim                  string       `json:"trim,omitempty"`
	Color                 string       `json:"color,omitempty"`
	Mileage               int          `json:"mileage,omitempty"`
	Price                 int          `json:"price,omitempty"`
	ListingURL            string       `json:"listing_url,omitempty"`
	ImageURL              string       `json:"image_url,omitempty"`
	ImageURLs             []string     `json:"image_urls,omitempty"`
	Status                string       `json:"status"`
	FirstSeenAt           time.Time    `json:"first_seen_at"`
	LastSeenAt            time.Time    `json:"last_seen_at"`
	PriceHistory          []PricePoint `json:"price_history"`
	ListingDateConfidence string       `json:"listing_date_confidence,omitempty"`
	ListingDateSource     string       `json:"listing_date_source,omitempty"`
}

// SalesRecord is emitted when a vehicle transitions to sold. Acquisition
// cost and profit fields are reserved for manual dealer entry and are never
// populated by the engine.
type SalesRecord struct {
	ID              int64            `json:"id"`
	TenantID        string           `json:"tenant_id"`
	Identifier      string           `json:"identifier"`
	Year            int              `json:"year,omitempty"`
	Make            string           `json:"make,omitempty"`
	Model           string           `json:"model,omitempty"`
	SalePrice       *int             `json:"sale_price,omitempty"`
	SaleDate        time.Time        `json:"sale_date"`
	DaysToSale      int              `json:"days_to_sale"`
	AcquisitionCost *decimal.Decimal `json:"acquisition_cost,omitempty"`
	GrossProfit     *decimal.Decimal `json:"gross_profit,omitempty"`
	MarginPercent   *decimal.Decimal `json:"margin_percent,omitempty"`
}

// Snapshot status
const (
	SnapshotPending = "pending"
	SnapshotSuccess = "success"
	SnapshotPartial = "partial"
	SnapshotFailed  = "failed"
)

// InventorySnapshot is the per-run marker for one tenant. Exactly one is
// written per pipeline invocation.
type InventorySnapshot struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	StartedAt     time.Time `json:"started_at"`
	Status        string    `json:"status"`
	VehiclesFound int       `json:"vehicles_found"`
	DurationMs    int64     `json:"duration_ms"`
	RawData       []byte    `json:"-"`
}

// Log levels for persisted scraping logs
const (
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// ScrapingLog is a structured log line tied to a snapshot, or to a tenant
// alone when setup failed before a snapshot existed.
type ScrapingLog struct {
	ID         int64          `json:"id"`
	TenantID   string         `json:"tenant_id"`
	SnapshotID *int64         `json:"snapshot_id,omitempty"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Sitemap fetch status
const (
	SitemapSuccess  = "success"
	SitemapNotFound = "not_found"
	SitemapError    = "error"
)

// SitemapCache maps detail-page paths to lastmod dates for one tenant.
// Errors are cached too so a broken site is not re-probed within the TTL.
type SitemapCache struct {
	TenantID    string            `json:"tenant_id"`
	Website     string            `json:"website"`
	Paths       map[string]string `json:"paths"`
	URLCount    int               `json:"url_count"`
	CachedAt    time.Time         `json:"cached_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	FetchStatus string            `json:"fetch_status"`
	ErrorMsg    string            `json:"error_msg,omitempty"`
}

// Expired reports whether the cached mapping is past its TTL.
func (c *SitemapCache) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// MakeCount is one entry of a top-makes ranking.
type MakeCount struct {
	Make  string `json:"make"`
	Count int    `json:"count"`
}

// CompetitorStats holds the aggregate statistics computed from one scan of a
// competitor site. Shared by the per-URL snapshot and the append-only scan
// history.
type CompetitorStats struct {
	TenantID            string          `json:"tenant_id"`
	CompetitorURL       string          `json:"competitor_url"`
	VehicleCount        int             `json:"vehicle_count"`
	AvgPrice            decimal.Decimal `json:"avg_price"`
	MinPrice            int             `json:"min_price"`
	MaxPrice            int             `json:"max_price"`
	AvgMileage          decimal.Decimal `json:"avg_mileage"`
	MinMileage          int             `json:"min_mileage"`
	MaxMileage          int             `json:"max_mileage"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
	TopMakes            []MakeCount     `json:"top_makes"`
	ScannedAt           time.Time       `json:"scanned_at"`
}

// Scraper methods recorded on a tenant result
const (
	MethodPrimary    = "primary"
	MethodSecondary  = "secondary"
	MethodHTMLParser = "html_parser"
	MethodMixed      = "mixed"
)

// TenantResult is the per-tenant outcome of a pipeline invocation.
type TenantResult struct {
	TenantID          string `json:"tenant"`
	TenantName        string `json:"tenant_name"`
	Website           string `json:"website"`
	VehiclesFound     int    `json:"vehicles_found"`
	NewVehicles       int    `json:"new_vehicles"`
	UpdatedVehicles   int    `json:"updated_vehicles"`
	SoldVehicles      int    `json:"sold_vehicles"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
	DurationMs        int64  `json:"duration_ms"`
	ScraperMethod     string `json:"scraper_method,omitempty"`
	ScraperTier       string `json:"scraper_tier,omitempty"`
	ScraperConfidence string `json:"scraper_confidence,omitempty"`
}

// RunSummary totals a dispatcher invocation across tenants.
type RunSummary struct {
	TotalTenants     int   `json:"total_tenants"`
	RequestedTenants int   `json:"requested_tenants"`
	Successful       int   `json:"successful"`
	Failed           int   `json:"failed"`
	TotalVehicles    int   `json:"total_vehicles"`
	DurationMs       int64 `json:"duration_ms"`
	TimedOut         bool  `json:"timed_out"`
}

// ScrapeEvent is broadcast to SSE subscribers as runs progress.
type ScrapeEvent struct {
	Type          string    `json:"type"` // "scan_started", "scan_completed", "vehicle_sold"
	TenantID      string    `json:"tenant_id"`
	VehiclesFound int       `json:"vehicles_found,omitempty"`
	NewVehicles   int       `json:"new_vehicles,omitempty"`
	SoldVehicles  int       `json:"sold_vehicles,omitempty"`
	Identifier    string    `json:"identifier,omitempty"`
	Status        string    `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// APIResponse is the JSON envelope returned by all handlers.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
