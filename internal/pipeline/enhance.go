package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/vindecode"
)

// enhance fetches the detail page for every listing still missing a
// critical field and merges what it finds, with bounded concurrency. A
// detail page whose year or make disagrees with the listing is discarded
// rather than allowed to poison the record.
func (p *Pipeline) enhance(ctx context.Context, tenantID string, snapshotID *int64, vehicles []domain.ParsedVehicle) {
	sem := make(chan struct{}, p.cfg.DetailConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range vehicles {
		v := &vehicles[i]
		if v.HasCriticalFields() || v.ListingURL == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := p.fetcher.Fetch(ctx, v.ListingURL)
			if !res.Success {
				// A detail timeout is not fatal; the listing keeps its
				// index-page data.
				return
			}

			parsed := p.parser.Parse(res.Body, v.ListingURL)
			if len(parsed) == 0 {
				return
			}
			detail := &parsed[0]

			mu.Lock()
			defer mu.Unlock()
			if !detailMatches(v, detail) {
				p.warn(ctx, tenantID, snapshotID, "detail_page_mismatch", map[string]any{
					"url":          v.ListingURL,
					"listing_year": v.Year, "detail_year": detail.Year,
					"listing_make": v.Make, "detail_make": detail.Make,
				})
				return
			}
			mergeDetail(v, detail)
		}()
	}
	wg.Wait()
}

// detailMatches validates the detail parse against the listing: when both
// sides state a year or a make, they must agree.
func detailMatches(listing, detail *domain.ParsedVehicle) bool {
	if listing.Year != 0 && detail.Year != 0 && listing.Year != detail.Year {
		return false
	}
	if listing.Make != "" && detail.Make != "" &&
		!strings.EqualFold(listing.Make, detail.Make) {
		return false
	}
	return true
}

// mergeDetail fills only the listing's empty fields; index-page data always
// wins where present.
func mergeDetail(listing, detail *domain.ParsedVehicle) {
	if listing.VIN == "" && domain.ValidVIN(detail.VIN) {
		listing.VIN = detail.VIN
	}
	if listing.StockNumber == "" {
		listing.StockNumber = detail.StockNumber
	}
	if listing.Year == 0 {
		listing.Year = detail.Year
	}
	if listing.Make == "" {
		listing.Make = detail.Make
	}
	if listing.Model == "" {
		listing.Model = detail.Model
	}
	if listing.Trim == "" {
		listing.Trim = detail.Trim
	}
	if listing.Color == "" {
		listing.Color = detail.Color
	}
	if listing.Mileage == 0 {
		listing.Mileage = detail.Mileage
	}
	if listing.Price == 0 {
		listing.Price = detail.Price
	}
	if listing.ImageURL == "" {
		listing.ImageURL = detail.ImageURL
	}
	if len(listing.ImageURLs) == 0 {
		listing.ImageURLs = detail.ImageURLs
	}
	if listing.ImageDate == nil {
		listing.ImageDate = detail.ImageDate
	}
}

// enrichVINs runs the decode service for listings that carry a VIN but are
// still missing year, make, or model. Present fields are never replaced.
func (p *Pipeline) enrichVINs(ctx context.Context, vehicles []domain.ParsedVehicle) {
	for i := range vehicles {
		v := &vehicles[i]
		if !domain.ValidVIN(v.VIN) {
			continue
		}
		if v.Year != 0 && v.Make != "" && v.Model != "" {
			continue
		}
		decoded, err := p.vins.Decode(ctx, v.VIN)
		if err != nil || decoded == nil {
			continue
		}
		vindecode.Enrich(v, decoded)
	}
}
