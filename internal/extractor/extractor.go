// Package extractor presents one uniform interface over the remote
// rendering services and the local HTML fallback. The cascade is
// deterministic: first tier returning vehicles wins, and results are never
// merged across tiers.
package extractor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/fetcher"
	"github.com/gustavo-camilo/dealer-copilot/internal/htmlparser"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
)

// RendererVehicle is the wire shape returned by both remote renderers.
type RendererVehicle struct {
	Year        int    `json:"year,omitempty"`
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Price       int    `json:"price,omitempty"`
	Mileage     int    `json:"mileage,omitempty"`
	VIN         string `json:"vin,omitempty"`
	StockNumber string `json:"stock_number,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	DetailURL   string `json:"detail_url,omitempty"`
	ListingDate string `json:"listing_date,omitempty"`
	Color       string `json:"color,omitempty"`
	Trim        string `json:"trim,omitempty"`
}

// RendererResponse is the renderer service envelope.
type RendererResponse struct {
	Success      bool              `json:"success"`
	Vehicles     []RendererVehicle `json:"vehicles"`
	Tier         string            `json:"tier"`
	Confidence   string            `json:"confidence"`
	PagesScraped int               `json:"pagesScraped,omitempty"`
	Duration     float64           `json:"duration"`
}

type rendererRequest struct {
	URL              string `json:"url"`
	UseCachedPattern bool   `json:"useCachedPattern,omitempty"`
	MaxPages         int    `json:"maxPages,omitempty"`
}

// Outcome is the uniform result handed to the pipeline for one candidate
// URL. Tier and Confidence are opaque renderer labels kept for
// observability only.
type Outcome struct {
	Vehicles   []domain.ParsedVehicle
	Method     string
	Tier       string
	Confidence string
	HTML       string // populated only by the HTML fallback tier
}

// Config wires the cascade. An empty endpoint URL skips that tier.
type Config struct {
	PrimaryURL   string
	SecondaryURL string
	Timeout      time.Duration
}

type Client struct {
	cfg     Config
	http    *resty.Client
	fetcher *fetcher.Fetcher
	parser  *htmlparser.Parser
	logger  *slog.Logger
}

func New(cfg Config, f *fetcher.Fetcher, parser *htmlparser.Parser, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    resty.New().SetTimeout(cfg.Timeout),
		fetcher: f,
		parser:  parser,
		logger:  logger,
	}
}

// Extract runs the cascade for one candidate inventory URL.
func (c *Client) Extract(ctx context.Context, url string) Outcome {
	if c.cfg.PrimaryURL != "" {
		if out, ok := c.renderer(ctx, c.cfg.PrimaryURL, url, domain.MethodPrimary); ok {
			return out
		}
	}
	if c.cfg.SecondaryURL != "" {
		if out, ok := c.renderer(ctx, c.cfg.SecondaryURL, url, domain.MethodSecondary); ok {
			return out
		}
	}
	return c.htmlFallback(ctx, url)
}

// renderer calls one remote rendering service. ok is false on transport
// failure or an empty vehicle set, which sends the cascade to the next tier.
func (c *Client) renderer(ctx context.Context, endpoint, url, method string) (Outcome, bool) {
	var body RendererResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rendererRequest{URL: url}).
		SetResult(&body).
		Post(endpoint)
	if err != nil {
		metrics.ExtractorCallsTotal.WithLabelValues(method, "error").Inc()
		c.logger.Warn("renderer_unavailable",
			slog.String("tier", method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return Outcome{}, false
	}
	if resp.StatusCode() != 200 || !body.Success || len(body.Vehicles) == 0 {
		metrics.ExtractorCallsTotal.WithLabelValues(method, "empty").Inc()
		return Outcome{}, false
	}

	vehicles := make([]domain.ParsedVehicle, 0, len(body.Vehicles))
	for _, rv := range body.Vehicles {
		v := fromRenderer(rv)
		if htmlparser.Valid(&v) {
			vehicles = append(vehicles, v)
		}
	}
	if len(vehicles) == 0 {
		metrics.ExtractorCallsTotal.WithLabelValues(method, "empty").Inc()
		return Outcome{}, false
	}

	metrics.ExtractorCallsTotal.WithLabelValues(method, "ok").Inc()
	return Outcome{
		Vehicles:   vehicles,
		Method:     method,
		Tier:       body.Tier,
		Confidence: body.Confidence,
	}, true
}

func (c *Client) htmlFallback(ctx context.Context, url string) Outcome {
	res := c.fetcher.Fetch(ctx, url)
	if !res.Success {
		metrics.ExtractorCallsTotal.WithLabelValues(domain.MethodHTMLParser, "error").Inc()
		return Outcome{Method: domain.MethodHTMLParser}
	}
	vehicles := c.parser.Parse(res.Body, url)
	outcome := "ok"
	if len(vehicles) == 0 {
		outcome = "empty"
	}
	metrics.ExtractorCallsTotal.WithLabelValues(domain.MethodHTMLParser, outcome).Inc()
	return Outcome{
		Vehicles: vehicles,
		Method:   domain.MethodHTMLParser,
		HTML:     res.Body,
	}
}

// fromRenderer validates renderer fields into a ParsedVehicle. Out-of-range
// values are dropped rather than propagated.
func fromRenderer(rv RendererVehicle) domain.ParsedVehicle {
	v := domain.ParsedVehicle{
		StockNumber: strings.TrimSpace(rv.StockNumber),
		Make:        strings.TrimSpace(rv.Make),
		Model:       strings.TrimSpace(rv.Model),
		Trim:        strings.TrimSpace(rv.Trim),
		Color:       strings.TrimSpace(rv.Color),
		ListingURL:  strings.TrimSpace(rv.DetailURL),
		ImageURL:    strings.TrimSpace(rv.ImageURL),
	}
	vin := strings.ToUpper(strings.TrimSpace(rv.VIN))
	if domain.ValidVIN(vin) {
		v.VIN = vin
	}
	if rv.Year >= 1980 && rv.Year <= time.Now().Year()+1 {
		v.Year = rv.Year
	}
	if domain.ValidPrice(rv.Price) {
		v.Price = rv.Price
	}
	if domain.ValidMileage(rv.Mileage) && rv.Mileage > 0 {
		v.Mileage = rv.Mileage
	}
	return v
}
