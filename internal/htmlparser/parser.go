// Package htmlparser turns raw listing or detail HTML into ParsedVehicle
// records via cascading strategies: structured data first, then card
// isolation around vehicle links, then generic section scanning.
package htmlparser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
	"github.com/gustavo-camilo/dealer-copilot/internal/urlnorm"
)

var (
	jsonLDBlock = regexp.MustCompile(`(?is)<script[^>]+type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

	anchorTag = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)

	vehicleHref = regexp.MustCompile(`(?i)/vehicle|/inventory/|/cars/|/used-|-for-sale|/detail|\d+`)

	sectionOpen = regexp.MustCompile(`(?i)<(?:div|article|li|section)[\s>]`)
)

type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger, now: time.Now}
}

// Parse extracts vehicles from htmlBody. baseURL resolves relative detail
// and image links. The first strategy producing at least one valid record
// wins; later strategies never run.
func (p *Parser) Parse(htmlBody, baseURL string) []domain.ParsedVehicle {
	if strings.TrimSpace(htmlBody) == "" {
		return nil
	}

	if vehicles := p.parseStructuredData(htmlBody, baseURL); len(vehicles) > 0 {
		metrics.VehiclesParsedTotal.WithLabelValues("structured_data").Add(float64(len(vehicles)))
		return vehicles
	}
	if vehicles := p.parseVehicleCards(htmlBody, baseURL); len(vehicles) > 0 {
		metrics.VehiclesParsedTotal.WithLabelValues("vehicle_cards").Add(float64(len(vehicles)))
		return vehicles
	}
	if vehicles := p.parseGenericSections(htmlBody, baseURL); len(vehicles) > 0 {
		metrics.VehiclesParsedTotal.WithLabelValues("generic_sections").Add(float64(len(vehicles)))
		return vehicles
	}
	return nil
}

// Valid reports whether a parsed record carries enough signal to keep: a
// VIN, a year+make, a price+year, or at least a detail URL for later
// enrichment.
func Valid(v *domain.ParsedVehicle) bool {
	switch {
	case domain.ValidVIN(v.VIN):
		return true
	case v.Year != 0 && v.Make != "":
		return true
	case v.Price != 0 && v.Year != 0:
		return true
	case v.ListingURL != "":
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Strategy 1: JSON-LD structured data
// ---------------------------------------------------------------------------

func (p *Parser) parseStructuredData(htmlBody, baseURL string) []domain.ParsedVehicle {
	var out []domain.ParsedVehicle
	for _, m := range jsonLDBlock.FindAllStringSubmatch(htmlBody, -1) {
		block := strings.TrimSpace(m[1])
		if !gjson.Valid(block) {
			continue
		}
		walkLD(gjson.Parse(block), func(node gjson.Result) {
			if !vehicleTyped(node.Get("@type")) {
				return
			}
			v := p.vehicleFromLD(node, baseURL)
			if Valid(&v) {
				out = append(out, v)
			}
		})
	}
	return out
}

// walkLD visits every object in a JSON-LD value, descending into arrays and
// @graph containers uniformly.
func walkLD(node gjson.Result, visit func(gjson.Result)) {
	switch {
	case node.IsArray():
		for _, el := range node.Array() {
			walkLD(el, visit)
		}
	case node.IsObject():
		visit(node)
		if graph := node.Get("@graph"); graph.Exists() {
			walkLD(graph, visit)
		}
	}
}

func vehicleTyped(t gjson.Result) bool {
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

func (p *Parser) vehicleFromLD(node gjson.Result, baseURL string) domain.ParsedVehicle {
	v := domain.ParsedVehicle{}

	vin := strings.ToUpper(strings.TrimSpace(node.Get("vehicleIdentificationNumber").String()))
	if vin == "" {
		vin = strings.ToUpper(strings.TrimSpace(node.Get("vin").String()))
	}
	if domain.ValidVIN(vin) {
		v.VIN = vin
	}

	for _, key := range []string{"vehicleModelDate", "modelDate", "productionDate"} {
		if raw := node.Get(key).String(); raw != "" {
			if y, err := strconv.Atoi(raw[:min(4, len(raw))]); err == nil && y >= 1980 && y <= p.now().Year()+1 {
				v.Year = y
				break
			}
		}
	}

	brand := node.Get("brand.name").String()
	if brand == "" {
		brand = node.Get("brand").String()
	}
	if brand == "" {
		brand = node.Get("manufacturer.name").String()
	}
	if brand != "" {
		v.Make = canonicalMake(brand)
	}

	model := node.Get("model").String()
	if model == "" {
		// Fall back to the name minus year and make tokens.
		model = extractModel(node.Get("name").String(), v.Make)
	}
	if model != "" {
		v.Model = titleCase(strings.TrimSpace(model))
	}

	if price := ldNumber(node.Get("offers.price")); domain.ValidPrice(price) {
		v.Price = price
	} else if price := ldNumber(node.Get("offers.0.price")); domain.ValidPrice(price) {
		v.Price = price
	}

	if miles := ldNumber(node.Get("mileageFromOdometer.value")); domain.ValidMileage(miles) && miles > 0 {
		v.Mileage = miles
	}

	if color := node.Get("color").String(); color != "" {
		v.Color = titleCase(color)
	}

	pageURL := node.Get("url").String()
	if pageURL == "" {
		pageURL = node.Get("offers.url").String()
	}
	if pageURL != "" {
		if resolved, err := urlnorm.Resolve(pageURL, baseURL); err == nil {
			v.ListingURL = resolved
		}
	}

	img := node.Get("image")
	switch {
	case img.IsArray():
		for _, el := range img.Array() {
			v.ImageURLs = append(v.ImageURLs, el.String())
		}
		if len(v.ImageURLs) > 0 {
			v.ImageURL = v.ImageURLs[0]
		}
	case img.String() != "":
		v.ImageURL = img.String()
	}
	if v.ImageDate == nil {
		v.ImageDate = imageDateCluster(v.ImageURLs)
	}

	return v
}

func ldNumber(r gjson.Result) int {
	if !r.Exists() {
		return 0
	}
	if n := r.Int(); n != 0 {
		return int(n)
	}
	if s := r.String(); s != "" {
		if n, ok := parseThousands(strings.TrimPrefix(strings.TrimSpace(s), "$")); ok {
			return n
		}
	}
	return 0
}

func canonicalMake(brand string) string {
	if m := extractMake(brand); m != "" {
		return m
	}
	return titleCase(strings.TrimSpace(brand))
}

// ---------------------------------------------------------------------------
// Strategy 2: vehicle-card isolation
// ---------------------------------------------------------------------------

func (p *Parser) parseVehicleCards(htmlBody, baseURL string) []domain.ParsedVehicle {
	now := p.now()
	var out []domain.ParsedVehicle
	seenCards := make(map[string]bool)
	seenURLs := make(map[string]bool)

	for _, loc := range anchorTag.FindAllStringSubmatchIndex(htmlBody, -1) {
		href := htmlBody[loc[2]:loc[3]]
		text := textContent(htmlBody[loc[4]:loc[5]])

		if !vehicleLink(href, text) {
			continue
		}

		card, ok := NearestEnclosingBlock(htmlBody, loc[0], loc[1])
		if !ok {
			continue
		}
		if seenCards[card] {
			continue
		}
		seenCards[card] = true

		v := p.vehicleFromFragment(card, baseURL, now)
		if v.ListingURL == "" {
			if resolved, err := urlnorm.Resolve(href, baseURL); err == nil {
				v.ListingURL = resolved
			}
		}
		if v.ListingURL != "" && seenURLs[v.ListingURL] {
			continue
		}
		if Valid(&v) {
			if v.ListingURL != "" {
				seenURLs[v.ListingURL] = true
			}
			out = append(out, v)
		}
	}
	return out
}

// vehicleLink applies the card-strategy link heuristics.
func vehicleLink(href, text string) bool {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || href == "/" || strings.HasPrefix(href, "/search") {
		return false
	}
	if yearToken.MatchString(text) || extractMake(text) != "" {
		return true
	}
	return vehicleHref.MatchString(href)
}

// vehicleFromFragment runs every attribute extractor against one isolated
// fragment of HTML.
func (p *Parser) vehicleFromFragment(fragment, baseURL string, now time.Time) domain.ParsedVehicle {
	text := textContent(fragment)

	v := domain.ParsedVehicle{
		VIN:         extractVIN(text),
		StockNumber: extractStock(text),
		Year:        extractYear(text, now),
		Price:       extractPrice(text),
		Mileage:     extractMileage(text),
		Color:       extractColor(text),
	}
	v.Make = extractMake(text)
	if v.Make != "" {
		v.Model = extractModel(text, v.Make)
	}

	images := extractImages(fragment)
	for i, img := range images {
		if resolved, err := urlnorm.Resolve(img, baseURL); err == nil {
			images[i] = resolved
		}
	}
	if len(images) > 0 {
		v.ImageURL = images[0]
		v.ImageURLs = images
		v.ImageDate = imageDateCluster(images)
	}

	if m := anchorTag.FindStringSubmatch(fragment); m != nil {
		href := strings.TrimSpace(m[1])
		if href != "" && href != "#" && vehicleHref.MatchString(href) {
			if resolved, err := urlnorm.Resolve(href, baseURL); err == nil {
				v.ListingURL = resolved
			}
		}
	}

	return v
}

// ---------------------------------------------------------------------------
// Strategy 3: generic sections
// ---------------------------------------------------------------------------

func (p *Parser) parseGenericSections(htmlBody, baseURL string) []domain.ParsedVehicle {
	now := p.now()
	locs := sectionOpen.FindAllStringIndex(htmlBody, -1)
	if len(locs) == 0 {
		return nil
	}

	var out []domain.ParsedVehicle
	seenURLs := make(map[string]bool)
	for i, loc := range locs {
		end := len(htmlBody)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := htmlBody[loc[0]:end]
		text := textContent(segment)

		if extractYear(text, now) == 0 || extractMake(text) == "" {
			continue
		}

		v := p.vehicleFromFragment(segment, baseURL, now)
		if !Valid(&v) {
			continue
		}
		if v.ListingURL != "" {
			if seenURLs[v.ListingURL] {
				continue
			}
			seenURLs[v.ListingURL] = true
		}
		out = append(out, v)
	}
	return out
}
