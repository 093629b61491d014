// Package listingdate derives the date a vehicle was first listed, with
// explicit provenance. Downstream days-to-sale math depends on knowing which
// dates are real and which are estimated.
package listingdate

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

var (
	jsonLDBlock = regexp.MustCompile(`(?is)<script[^>]+type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

	// property=... content=... and content=... property=... orderings
	metaPropFirst = regexp.MustCompile(`(?i)<meta[^>]+(?:property|name)\s*=\s*["'](article:published_time|og:updated_time|datePosted|pubdate|DC\.date)["'][^>]*content\s*=\s*["']([^"']+)["']`)
	metaContFirst = regexp.MustCompile(`(?i)<meta[^>]+content\s*=\s*["']([^"']+)["'][^>]*(?:property|name)\s*=\s*["'](article:published_time|og:updated_time|datePosted|pubdate|DC\.date)["']`)

	filenameDate = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)

	visibleDate = regexp.MustCompile(`(?i)(?:listed|posted|added)(?:\s+on)?\s*[:\-]?\s+((?:[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})|(?:\d{1,2}/\d{1,2}/\d{4})|(?:\d{4}-\d{2}-\d{2}))`)
)

var jsonLDDateKeys = []string{"datePosted", "datePublished", "dateCreated", "uploadDate"}

var textDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"Jan 2 2006",
	"01/02/2006",
	"1/2/2006",
}

type Resolver struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve runs the fixed source cascade for one newly-seen vehicle. html is
// the page the vehicle was parsed from (may be empty when only a renderer
// payload exists); sitemapPaths maps detail paths to lastmod dates. now is
// the caller's clock reading: the reconciler passes the same instant it
// stamps last_seen_at with, so an estimated first_scan date can never land
// after it.
func (r *Resolver) Resolve(v *domain.ParsedVehicle, html string, sitemapPaths map[string]string, now time.Time) domain.ListingDate {
	// 1. Photo filename dates, already clustered by the parser.
	if v.ImageDate != nil && imageDateReasonable(*v.ImageDate, now) {
		return domain.ListingDate{Date: *v.ImageDate, Confidence: domain.ConfidenceHigh, Source: domain.SourceImageFilename}
	}
	for _, img := range append([]string{v.ImageURL}, v.ImageURLs...) {
		if d, ok := DateFromFilename(img); ok && imageDateReasonable(d, now) {
			return domain.ListingDate{Date: d, Confidence: domain.ConfidenceHigh, Source: domain.SourceImageFilename}
		}
	}

	// 2. JSON-LD vehicle blocks.
	if d, ok := r.fromJSONLD(html, now); ok {
		return domain.ListingDate{Date: d, Confidence: domain.ConfidenceHigh, Source: domain.SourceJSONLD}
	}

	// 3. Meta tags.
	if d, ok := r.fromMetaTags(html, now); ok {
		return domain.ListingDate{Date: d, Confidence: domain.ConfidenceHigh, Source: domain.SourceMetaTag}
	}

	// 4. Sitemap lastmod.
	if d, ok := r.fromSitemap(v.ListingURL, sitemapPaths, now); ok {
		return domain.ListingDate{Date: d, Confidence: domain.ConfidenceMedium, Source: domain.SourceSitemap}
	}

	// 5. Visible "Listed:" text.
	if m := visibleDate.FindStringSubmatch(html); m != nil {
		if d, ok := parseTextDate(m[1]); ok && reasonable(d, now) {
			return domain.ListingDate{Date: d, Confidence: domain.ConfidenceMedium, Source: domain.SourceVisibleText}
		}
	}

	// 6. First sighting is all we know.
	return domain.ListingDate{Date: now, Confidence: domain.ConfidenceEstimated, Source: domain.SourceFirstScan}
}

// reasonable bounds every accepted date to [now − 3y, now + 1d].
func reasonable(d, now time.Time) bool {
	return !d.Before(now.AddDate(-3, 0, 0)) && !d.After(now.AddDate(0, 0, 1))
}

// imageDateReasonable additionally requires the year to be recent: photo
// timestamps older than three years are camera-clock noise.
func imageDateReasonable(d, now time.Time) bool {
	return reasonable(d, now) && d.Year() >= now.Year()-3
}

// DateFromFilename extracts a YYYYMMDD date from the filename of an image
// URL.
func DateFromFilename(imageURL string) (time.Time, bool) {
	if imageURL == "" {
		return time.Time{}, false
	}
	name := imageURL
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		name = u.Path
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	m := filenameDate.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", m[1]+m[2]+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (r *Resolver) fromJSONLD(html string, now time.Time) (time.Time, bool) {
	for _, m := range jsonLDBlock.FindAllStringSubmatch(html, -1) {
		block := m[1]
		if !gjson.Valid(block) {
			continue
		}
		root := gjson.Parse(block)
		var found time.Time
		var ok bool
		walkJSONLD(root, func(node gjson.Result) bool {
			if !isVehicleType(node.Get("@type")) {
				return true
			}
			for _, key := range jsonLDDateKeys {
				if raw := node.Get(key).String(); raw != "" {
					if d, parsed := parseTextDate(raw); parsed && reasonable(d, now) {
						found, ok = d, true
						return false
					}
				}
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	return time.Time{}, false
}

// walkJSONLD visits every object in a JSON-LD value, treating arrays,
// objects, and @graph containers uniformly. The visitor returns false to
// stop.
func walkJSONLD(node gjson.Result, visit func(gjson.Result) bool) bool {
	switch {
	case node.IsArray():
		for _, el := range node.Array() {
			if !walkJSONLD(el, visit) {
				return false
			}
		}
	case node.IsObject():
		if !visit(node) {
			return false
		}
		if graph := node.Get("@graph"); graph.Exists() {
			if !walkJSONLD(graph, visit) {
				return false
			}
		}
	}
	return true
}

func isVehicleType(t gjson.Result) bool {
	match := func(s string) bool {
		return strings.EqualFold(s, "Car") || strings.EqualFold(s, "Vehicle")
	}
	if t.IsArray() {
		for _, el := range t.Array() {
			if match(el.String()) {
				return true
			}
		}
		return false
	}
	return match(t.String())
}

func (r *Resolver) fromMetaTags(html string, now time.Time) (time.Time, bool) {
	try := func(raw string) (time.Time, bool) {
		if d, ok := parseTextDate(strings.TrimSpace(raw)); ok && reasonable(d, now) {
			return d, true
		}
		return time.Time{}, false
	}
	for _, m := range metaPropFirst.FindAllStringSubmatch(html, -1) {
		if d, ok := try(m[2]); ok {
			return d, true
		}
	}
	for _, m := range metaContFirst.FindAllStringSubmatch(html, -1) {
		if d, ok := try(m[1]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func (r *Resolver) fromSitemap(listingURL string, paths map[string]string, now time.Time) (time.Time, bool) {
	if listingURL == "" || len(paths) == 0 {
		return time.Time{}, false
	}
	u, err := url.Parse(listingURL)
	if err != nil {
		return time.Time{}, false
	}
	vehiclePath := u.Path

	lastmod, ok := paths[vehiclePath]
	if !ok {
		// Partial match: dealer platforms append slugs or prefixes.
		for p, lm := range paths {
			if strings.Contains(vehiclePath, p) || strings.Contains(p, vehiclePath) {
				lastmod, ok = lm, true
				break
			}
		}
	}
	if !ok {
		return time.Time{}, false
	}
	d, parsed := parseTextDate(lastmod)
	if !parsed || !reasonable(d, now) {
		return time.Time{}, false
	}
	return d, true
}

func parseTextDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range textDateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
