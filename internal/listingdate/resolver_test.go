package listingdate

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

var testNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

func testResolver() *Resolver {
	return New(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestResolveImageFilename(t *testing.T) {
	r := testResolver()
	v := &domain.ParsedVehicle{
		ImageURL: "https://cdn.dealer.test/photos/IMG_20251101_front.jpg",
	}
	got := r.Resolve(v, "", nil, testNow)
	assert.Equal(t, domain.SourceImageFilename, got.Source)
	assert.Equal(t, domain.ConfidenceHigh, got.Confidence)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestResolveImageFilenameRejectsOldYears(t *testing.T) {
	r := testResolver()
	v := &domain.ParsedVehicle{
		ImageURL: "https://cdn.dealer.test/photos/IMG_20180101.jpg",
	}
	got := r.Resolve(v, "", nil, testNow)
	assert.Equal(t, domain.SourceFirstScan, got.Source)
}

func TestResolveJSONLD(t *testing.T) {
	r := testResolver()
	html := `<html><script type="application/ld+json">
	{"@type": "Car", "name": "2020 Honda Accord", "datePosted": "2025-10-20"}
	</script></html>`
	got := r.Resolve(&domain.ParsedVehicle{}, html, nil, testNow)
	assert.Equal(t, domain.SourceJSONLD, got.Source)
	assert.Equal(t, domain.ConfidenceHigh, got.Confidence)
	assert.Equal(t, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestResolveJSONLDArrayAndGraph(t *testing.T) {
	r := testResolver()
	html := `<script type="application/ld+json">
	{"@graph": [
	  {"@type": "WebPage", "datePublished": "2020-01-01"},
	  {"@type": ["Product", "Vehicle"], "datePublished": "2025-09-30T08:00:00Z"}
	]}</script>`
	got := r.Resolve(&domain.ParsedVehicle{}, html, nil, testNow)
	assert.Equal(t, domain.SourceJSONLD, got.Source)
	assert.Equal(t, 30, got.Date.Day())
}

func TestResolveMetaTag(t *testing.T) {
	r := testResolver()
	tests := []string{
		`<meta property="article:published_time" content="2025-10-05T09:00:00Z">`,
		`<meta content="2025-10-05" name="datePosted">`,
		`<meta name="DC.date" content="2025-10-05">`,
	}
	for _, tag := range tests {
		got := r.Resolve(&domain.ParsedVehicle{}, "<html>"+tag+"</html>", nil, testNow)
		assert.Equal(t, domain.SourceMetaTag, got.Source, "tag %s", tag)
		assert.Equal(t, 5, got.Date.Day())
	}
}

func TestResolveSitemap(t *testing.T) {
	r := testResolver()
	v := &domain.ParsedVehicle{ListingURL: "https://dealer.test/inventory/2020-honda-accord"}
	paths := map[string]string{"/inventory/2020-honda-accord": "2025-10-12"}

	got := r.Resolve(v, "", paths, testNow)
	assert.Equal(t, domain.SourceSitemap, got.Source)
	assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
	assert.Equal(t, 12, got.Date.Day())
}

func TestResolveSitemapPartialMatch(t *testing.T) {
	r := testResolver()
	v := &domain.ParsedVehicle{ListingURL: "https://dealer.test/inventory/2020-honda-accord-sedan-blue"}
	paths := map[string]string{"/inventory/2020-honda-accord": "2025-10-12"}

	got := r.Resolve(v, "", paths, testNow)
	assert.Equal(t, domain.SourceSitemap, got.Source)
}

func TestResolveVisibleText(t *testing.T) {
	r := testResolver()
	for _, text := range []string{
		"<p>Listed: Nov 1, 2025</p>",
		"<p>Posted on: 11/01/2025</p>",
		"<p>Added 2025-11-01</p>",
	} {
		got := r.Resolve(&domain.ParsedVehicle{}, text, nil, testNow)
		assert.Equal(t, domain.SourceVisibleText, got.Source, "text %q", text)
		assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
		assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), got.Date)
	}
}

func TestResolveFallsBackToFirstScan(t *testing.T) {
	r := testResolver()
	got := r.Resolve(&domain.ParsedVehicle{}, "<html>no dates anywhere</html>", nil, testNow)
	assert.Equal(t, domain.SourceFirstScan, got.Source)
	assert.Equal(t, domain.ConfidenceEstimated, got.Confidence)
	assert.Equal(t, testNow, got.Date)
}

func TestResolveRejectsUnreasonableDates(t *testing.T) {
	r := testResolver()

	// Too old: more than three years back falls through to first_scan.
	html := fmt.Sprintf(`<script type="application/ld+json">{"@type":"Car","datePosted":"%s"}</script>`,
		testNow.AddDate(-4, 0, 0).Format("2006-01-02"))
	got := r.Resolve(&domain.ParsedVehicle{}, html, nil, testNow)
	assert.Equal(t, domain.SourceFirstScan, got.Source)

	// Future beyond one day is rejected too.
	html = fmt.Sprintf(`<script type="application/ld+json">{"@type":"Car","datePosted":"%s"}</script>`,
		testNow.AddDate(0, 0, 7).Format("2006-01-02"))
	got = r.Resolve(&domain.ParsedVehicle{}, html, nil, testNow)
	assert.Equal(t, domain.SourceFirstScan, got.Source)
}

func TestResolvePriorityOrder(t *testing.T) {
	r := testResolver()
	// Page has both a JSON-LD date and a visible text date; JSON-LD wins.
	html := `<script type="application/ld+json">{"@type":"Car","datePosted":"2025-10-01"}</script>
	<p>Listed: Nov 1, 2025</p>`
	got := r.Resolve(&domain.ParsedVehicle{}, html, nil, testNow)
	assert.Equal(t, domain.SourceJSONLD, got.Source)
}

func TestDateFromFilename(t *testing.T) {
	d, ok := DateFromFilename("https://cdn.test/photo_20251103.jpg")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), d)

	_, ok = DateFromFilename("https://cdn.test/photo.jpg")
	assert.False(t, ok)

	// The date must be in the filename, not the directory.
	_, ok = DateFromFilename("https://cdn.test/20251103/photo.jpg")
	assert.False(t, ok)
}
