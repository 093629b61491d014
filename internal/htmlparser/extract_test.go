package htmlparser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extractNow = time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

func TestExtractVIN(t *testing.T) {
	assert.Equal(t, "1HGCV1F30LA012345", extractVIN("VIN: 1HGCV1F30LA012345"))
	assert.Equal(t, "1HGCV1F30LA012345", extractVIN("vin # 1HGCV1F30LA012345"))
	// Labeled occurrences win over bare ones.
	assert.Equal(t, "1FTFW1E50MKE12345",
		extractVIN("5YJSA1E26HF000337 somewhere, but VIN: 1FTFW1E50MKE12345"))
	// Embedded separators are stripped.
	assert.Equal(t, "1HGCV1F30LA012345", extractVIN("VIN: 1HGCV-1F30L-A0123-45"))
	// Bare match fallback.
	assert.Equal(t, "1HGCV1F30LA012345", extractVIN("stock data 1HGCV1F30LA012345 more"))
	assert.Equal(t, "", extractVIN("no vin here"))
	assert.Equal(t, "", extractVIN("VIN: SHORT"))
}

func TestExtractStock(t *testing.T) {
	assert.Equal(t, "ABC123", extractStock("Stock #: ABC123"))
	assert.Equal(t, "ABC123", extractStock("stock ABC123"))
	assert.Equal(t, "P-4521", extractStock("#P-4521 available now"))
	assert.Equal(t, "", extractStock("#ab"))
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2020, extractYear("2020 Honda Accord", extractNow))
	assert.Equal(t, 1995, extractYear("clean 1995 classic", extractNow))
	assert.Equal(t, 0, extractYear("1979 is too old", extractNow))
	assert.Equal(t, 0, extractYear("year 2028 concept", extractNow))
	assert.Equal(t, 0, extractYear("no year", extractNow))
}

func TestExtractMake(t *testing.T) {
	assert.Equal(t, "Honda", extractMake("2020 Honda Accord"))
	assert.Equal(t, "Chevrolet", extractMake("2018 Chevy Silverado"))
	assert.Equal(t, "Volkswagen", extractMake("clean VW Golf"))
	assert.Equal(t, "Mercedes-Benz", extractMake("2019 Mercedes C300"))
	assert.Equal(t, "Land Rover", extractMake("Land Rover Defender"))
	assert.Equal(t, "", extractMake("hondata tuning kit"), "substring must not match")
	assert.Equal(t, "", extractMake("nothing automotive"))
}

func TestExtractModel(t *testing.T) {
	assert.Equal(t, "Accord", extractModel("2020 Honda Accord $23,495", "Honda"))
	assert.Equal(t, "Camry", extractModel("2019 Toyota Camry | 51,000 mi", "Toyota"))
	assert.Equal(t, "F-150", extractModel("2021 Ford F-150 28,000 miles", "Ford"))
	// Stopwords end the capture.
	assert.Equal(t, "", extractModel("Honda for sale", "Honda"))
	assert.Equal(t, "Civic", extractModel("Honda Civic certified pre owned", "Honda"))
}

func TestExtractPrice(t *testing.T) {
	assert.Equal(t, 23495, extractPrice("$23,495"))
	assert.Equal(t, 37000, extractPrice("$37000"))
	assert.Equal(t, 21000, extractPrice("Price: $21,000"))
	assert.Equal(t, 15500, extractPrice("price $ 15,500 today"))
	assert.Equal(t, 0, extractPrice("$999"), "below the plausible floor")
	assert.Equal(t, 0, extractPrice("$500,001"), "above the plausible ceiling")
	assert.Equal(t, 0, extractPrice("no price"))
}

func TestExtractMileage(t *testing.T) {
	assert.Equal(t, 42000, extractMileage("42,000 mi"))
	assert.Equal(t, 51000, extractMileage("51.000 km"))
	assert.Equal(t, 28000, extractMileage("28000 miles"))
	assert.Equal(t, 67000, extractMileage("Mileage: 67,000"))
	assert.Equal(t, 0, extractMileage("1,200,000 miles"), "above the odometer cap")
	assert.Equal(t, 0, extractMileage("no mileage"))
}

func TestExtractColor(t *testing.T) {
	assert.Equal(t, "Blue", extractColor("Color: Blue"))
	assert.Equal(t, "Silver", extractColor("Exterior Colour: silver"))
	assert.Equal(t, "Charcoal", extractColor("a charcoal sedan"))
	assert.Equal(t, "", extractColor("nothing here"))
}

func TestExtractImages(t *testing.T) {
	fragment := `
	  <img src="/assets/logo.png" width="200">
	  <img src="/photos/IMG_20251101_1.jpg" width="640" height="480">
	  <img src="/photos/thumb.jpg" width="64" height="64">
	  <img src="/photos/IMG_20251102_2.jpg">
	  <img src="/assets/loading-placeholder.jpg" width="800">
	  <img src="/assets/spinner.gif" width="800">`

	got := extractImages(fragment)
	require.Equal(t, []string{"/photos/IMG_20251101_1.jpg", "/photos/IMG_20251102_2.jpg"}, got)
}

func TestImageDateCluster(t *testing.T) {
	// Two photos a day apart form a cluster.
	d := imageDateCluster([]string{
		"/photos/IMG_20251101_1.jpg",
		"/photos/IMG_20251102_2.jpg",
	})
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), *d)

	// A single dated photo proves nothing.
	assert.Nil(t, imageDateCluster([]string{"/photos/IMG_20251101_1.jpg"}))

	// Dates spread over months do not cluster.
	assert.Nil(t, imageDateCluster([]string{
		"/photos/IMG_20250101_1.jpg",
		"/photos/IMG_20251101_2.jpg",
	}))

	// Filenames without a photo-like stem are ignored.
	assert.Nil(t, imageDateCluster([]string{
		"/banners/20251101-sale.jpg",
		"/banners/20251102-sale.jpg",
	}))
}

func TestParseThousands(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"23,495", 23495, true},
		{"51.000", 51000, true},
		{"1,234,567", 1234567, true},
		{"37000", 37000, true},
		{"12,34", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseThousands(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.Equal(t, c.want, got, c.in)
		}
	}
}
