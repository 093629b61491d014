// Package identifier assigns the per-tenant stable key reconciliation uses
// to match a listing across runs when the site hides the VIN.
package identifier

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// StockPrefix marks identifiers derived from a dealer stock number.
const StockPrefix = "STOCK_"

// Generator tracks the identifiers handed out within a single run so
// attribute-hash collisions get a URL salt appended. One Generator per
// pipeline run; it is not safe for concurrent use.
type Generator struct {
	assigned map[string]bool
}

func NewGenerator() *Generator {
	return &Generator{assigned: make(map[string]bool)}
}

// Identify returns the stable identifier for v, or ok=false when the
// listing carries too little signal to track at all.
func (g *Generator) Identify(v *domain.ParsedVehicle) (string, bool) {
	if domain.ValidVIN(v.VIN) {
		g.assigned[v.VIN] = true
		return v.VIN, true
	}
	if v.StockNumber != "" {
		id := StockPrefix + strings.ToUpper(strings.TrimSpace(v.StockNumber))
		g.assigned[id] = true
		return id, true
	}
	if v.Year != 0 && v.Make != "" && v.Model != "" {
		base := attributeBase(v)
		id := base
		if g.assigned[base] {
			id = base + "_" + urlSalt(v.ListingURL)
		}
		g.assigned[id] = true
		return id, true
	}
	return "", false
}

// Seen marks an identifier as taken for collision purposes without
// assigning it, used to pre-load the batch's pre-existing identifiers.
func (g *Generator) Seen(id string) {
	g.assigned[id] = true
}

// attributeBase builds UPPER(year_make_model_trim_mileage_color_price) with
// empty fields elided and internal spaces folded to underscores.
func attributeBase(v *domain.ParsedVehicle) string {
	parts := []string{strconv.Itoa(v.Year), v.Make, v.Model, v.Trim}
	if v.Mileage != 0 {
		parts = append(parts, strconv.Itoa(v.Mileage))
	} else {
		parts = append(parts, "")
	}
	if v.Color != "" {
		parts = append(parts, v.Color)
	} else {
		parts = append(parts, "")
	}
	if v.Price != 0 {
		parts = append(parts, strconv.Itoa(v.Price))
	} else {
		parts = append(parts, "")
	}
	joined := strings.Join(parts, "_")
	joined = strings.ReplaceAll(joined, " ", "_")
	return strings.ToUpper(joined)
}

// urlSalt is the alphanumeric tail of the listing URL, or a random 8-char
// suffix when there is no URL to salt with.
func urlSalt(listingURL string) string {
	if listingURL != "" {
		var tail []byte
		for i := len(listingURL) - 1; i >= 0 && len(tail) < 8; i-- {
			c := listingURL[i]
			if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
				tail = append([]byte{c}, tail...)
			} else if len(tail) > 0 {
				break
			}
		}
		if len(tail) > 0 {
			return strings.ToUpper(string(tail))
		}
	}
	return strings.ToUpper(uuid.New().String()[:8])
}

// IsSynthetic reports whether id was generated rather than read off the
// vehicle. Synthetic identifiers are upgraded in place when a later run
// surfaces the real VIN.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, StockPrefix) || strings.Contains(id, "_")
}
