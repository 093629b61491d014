package pipeline

import (
	"context"
	"log/slog"
)

// commonInventoryPaths are probed alongside the site root. Dealer platforms
// converge on a small set of inventory page locations.
var commonInventoryPaths = []string{
	"/inventory",
	"/used-cars",
	"/used-vehicles",
	"/used-inventory",
	"/vehicles",
	"/cars",
	"/all-inventory",
}

// discoverCandidates returns the inventory pages worth extracting, root
// first. The root always qualifies; the rest must answer a HEAD probe.
func (p *Pipeline) discoverCandidates(ctx context.Context, website string) []string {
	candidates := []string{website}
	seen := map[string]bool{website: true}

	for _, path := range commonInventoryPaths {
		probe := website + path
		if seen[probe] {
			continue
		}
		hctx, cancel := context.WithTimeout(ctx, p.cfg.HeadTimeout)
		res := p.fetcher.Head(hctx, probe)
		cancel()
		if res.Success {
			seen[probe] = true
			candidates = append(candidates, probe)
		}
	}

	p.logger.Debug("inventory_candidates_discovered",
		slog.String("website", website),
		slog.Int("count", len(candidates)),
	)
	return candidates
}
