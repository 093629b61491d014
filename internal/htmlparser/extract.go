package htmlparser

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/listingdate"
)

var (
	labeledVIN = regexp.MustCompile(`(?i)vin[:#\s]+([A-HJ-NPR-Z0-9 \-]{17,25})`)
	bareVIN    = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)

	labeledStock = regexp.MustCompile(`(?i)stock[#:\s]+([A-Z0-9\-]{3,})`)
	hashStock    = regexp.MustCompile(`#([A-Z0-9\-]{3,})\b`)

	labeledPrice = regexp.MustCompile(`(?i)price[:\s]*\$\s?(\d{1,3}(?:[,.]\d{3})+|\d+)`)
	barePrice    = regexp.MustCompile(`\$\s?(\d{1,3}(?:[,.]\d{3})+|\d+)`)

	labeledMileage = regexp.MustCompile(`(?i)mileage[:\s]+([\d.,]+)`)
	suffixMileage  = regexp.MustCompile(`(?i)\b([\d.,]+)\s*(?:mi|miles|km)\b`)

	labeledColor = regexp.MustCompile(`(?i)colou?r[:\s]+([A-Za-z]+)`)

	imgTag      = regexp.MustCompile(`(?is)<img[^>]*>`)
	srcAttr     = regexp.MustCompile(`(?i)src\s*=\s*["']([^"']+)["']`)
	widthAttr   = regexp.MustCompile(`(?i)\bwidth\s*=\s*["']?(\d+)`)
	heightAttr  = regexp.MustCompile(`(?i)\bheight\s*=\s*["']?(\d+)`)
	tagStripper = regexp.MustCompile(`(?s)<[^>]*>`)
)

// junkImageMarkers exclude chrome images from primary-photo selection.
var junkImageMarkers = []string{
	"logo", "icon", "badge", "social", "nav", "header", "footer", "banner",
	"button", "avatar", "placeholder", ".svg", ".gif",
}

// imageStemMarkers gate which filenames may contribute bare YYYYMMDD dates.
var imageStemMarkers = []string{"img", "photo", "vehicle", "car", "dsc", "pic"}

// textContent strips tags and decodes entities from an HTML fragment.
func textContent(fragment string) string {
	return html.UnescapeString(tagStripper.ReplaceAllString(fragment, " "))
}

// extractVIN prefers a labeled "VIN: ..." occurrence over a bare 17-char
// match, tolerating embedded spaces and dashes in the labeled form.
func extractVIN(text string) string {
	if m := labeledVIN.FindStringSubmatch(text); m != nil {
		candidate := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(m[1]))
		candidate = strings.ToUpper(candidate)
		if domain.ValidVIN(candidate) {
			return candidate
		}
	}
	for _, m := range bareVIN.FindAllString(text, -1) {
		if domain.ValidVIN(m) && !allDigits(m) {
			return m
		}
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func extractStock(text string) string {
	if m := labeledStock.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := hashStock.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func extractYear(text string, now time.Time) int {
	m := yearToken.FindString(text)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	if year < 1980 || year > now.Year()+1 {
		return 0
	}
	return year
}

// extractMake matches the closed make list on word boundaries and
// canonicalizes aliases.
func extractMake(text string) string {
	lower := strings.ToLower(text)
	for _, make := range knownMakes {
		if containsWord(lower, strings.ToLower(make)) {
			return make
		}
	}
	for alias, canonical := range makeAliases {
		if containsWord(lower, alias) {
			return canonical
		}
	}
	return ""
}

// containsWord reports whether word occurs in lower on word boundaries.
func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		at := idx + i
		before := at == 0 || !wordChar(lower[at-1])
		afterIdx := at + len(word)
		after := afterIdx >= len(lower) || !wordChar(lower[afterIdx])
		if before && after {
			return true
		}
		idx = at + len(word)
	}
}

func wordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

var modelTerminator = regexp.MustCompile(`[|\n]|\$|\d[\d.,]*\s*(?i:mi|miles|km)\b`)

// extractModel captures the short run of words following the make, stopping
// at a price, mileage, pipe, or newline.
func extractModel(text, make string) string {
	lower := strings.ToLower(text)
	i := strings.Index(lower, strings.ToLower(make))
	if i < 0 {
		return ""
	}
	rest := text[i+len(make):]
	if m := modelTerminator.FindStringIndex(rest); m != nil {
		rest = rest[:m[0]]
	}
	fields := strings.Fields(rest)
	var kept []string
	for _, f := range fields {
		clean := strings.Trim(f, ",.:;!?")
		if clean == "" {
			break
		}
		if modelStopwords[strings.ToLower(clean)] {
			break
		}
		kept = append(kept, clean)
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		return ""
	}
	model := strings.Join(kept, " ")
	if isAllUpper(model) || hasLower(model) {
		model = titleCase(model)
	}
	return model
}

func isAllUpper(s string) bool {
	return s == strings.ToUpper(s)
}

func hasLower(s string) bool {
	return s != strings.ToUpper(s)
}

func extractPrice(text string) int {
	for _, re := range []*regexp.Regexp{labeledPrice, barePrice} {
		if m := re.FindStringSubmatch(text); m != nil {
			if p, ok := parseThousands(m[1]); ok && domain.ValidPrice(p) {
				return p
			}
		}
	}
	return 0
}

func extractMileage(text string) int {
	for _, re := range []*regexp.Regexp{suffixMileage, labeledMileage} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, ok := parseThousands(m[1]); ok && domain.ValidMileage(n) && n > 0 {
				return n
			}
		}
	}
	return 0
}

// parseThousands reads a number allowing both "," and "." as thousands
// separators. A trailing group of fewer than three digits is rejected as a
// decimal fraction.
func parseThousands(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	clean := strings.NewReplacer(",", "", ".", "").Replace(s)
	if clean == "" {
		return 0, false
	}
	if i := strings.IndexAny(s, ",."); i >= 0 {
		groups := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '.' })
		for gi, g := range groups {
			if gi > 0 && len(g) != 3 {
				return 0, false
			}
		}
	}
	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0, false
	}
	return n, true
}

func extractColor(text string) string {
	if m := labeledColor.FindStringSubmatch(text); m != nil {
		return titleCase(m[1])
	}
	lower := strings.ToLower(text)
	for _, c := range colorVocabulary {
		if containsWord(lower, c) {
			return titleCase(c)
		}
	}
	return ""
}

// extractImages returns every plausible vehicle photo URL in the fragment,
// primary first: chrome assets and declared thumbnails are skipped.
func extractImages(fragment string) []string {
	var urls []string
	for _, tag := range imgTag.FindAllString(fragment, -1) {
		m := srcAttr.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		src := strings.TrimSpace(m[1])
		if src == "" || junkImage(src) {
			continue
		}
		if w, ok := dimension(tag, widthAttr); ok && w < 100 {
			continue
		}
		if h, ok := dimension(tag, heightAttr); ok && h < 100 {
			continue
		}
		urls = append(urls, src)
	}
	return urls
}

func junkImage(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range junkImageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func dimension(tag string, re *regexp.Regexp) (int, bool) {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// imageDateCluster derives a listing date from photo filenames. A single
// dated filename proves nothing; two or more within a week is an upload
// batch.
func imageDateCluster(urls []string) *time.Time {
	var dates []time.Time
	for _, u := range urls {
		if !datedStem(u) {
			continue
		}
		if d, ok := listingdate.DateFromFilename(u); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil
	}
	for i := range dates {
		cluster := 0
		for j := range dates {
			diff := dates[i].Sub(dates[j])
			if diff < 0 {
				diff = -diff
			}
			if diff <= 7*24*time.Hour {
				cluster++
			}
		}
		if cluster >= 2 {
			earliest := dates[i]
			for j := range dates {
				diff := dates[i].Sub(dates[j])
				if diff < 0 {
					diff = -diff
				}
				if diff <= 7*24*time.Hour && dates[j].Before(earliest) {
					earliest = dates[j]
				}
			}
			return &earliest
		}
	}
	return nil
}

// datedStem requires the filename stem to look like a photo name before a
// bare YYYYMMDD is trusted.
func datedStem(imageURL string) bool {
	name := imageURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "img_20") || strings.Contains(lower, "img-20") ||
		strings.Contains(lower, "photo_20") || strings.Contains(lower, "photo-20") {
		return true
	}
	for _, marker := range imageStemMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
