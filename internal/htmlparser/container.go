package htmlparser

import (
	"regexp"
	"strings"
)

// containerTags is the closed set of block elements a listing card can be.
var containerTags = []string{"div", "article", "li", "section"}

var (
	yearToken    = regexp.MustCompile(`\b(19\d\d|20[0-3]\d)\b`)
	priceToken   = regexp.MustCompile(`\$\s?\d{1,3}(?:[,.]\d{3})*`)
	mileageToken = regexp.MustCompile(`(?i)\b[\d.,]+\s*(?:mi|miles|km)\b`)
)

// NearestEnclosingBlock finds the smallest <div|article|li|section> that
// properly contains [start, end) and whose content looks like one vehicle
// listing. Matching is done by counting open/close tags of the candidate's
// own tag name, so fields are never pulled from an adjacent card.
func NearestEnclosingBlock(html string, start, end int) (string, bool) {
	best := ""
	bestLen := len(html) + 1
	for _, tag := range containerTags {
		if content, ok := enclosingBlockForTag(html, start, end, tag); ok && len(content) < bestLen {
			best = content
			bestLen = len(content)
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// enclosingBlockForTag scans backward from start for <tag openers and, for
// each, walks forward balancing opens against closes until depth returns to
// zero. The first opener whose matching close lies past end and whose
// content carries a vehicle token wins.
func enclosingBlockForTag(html string, start, end int, tag string) (string, bool) {
	lower := strings.ToLower(html)
	open := "<" + tag
	pos := start
	for {
		i := strings.LastIndex(lower[:pos], open)
		if i < 0 {
			return "", false
		}
		pos = i
		// Must be a real opener, not a prefix of a longer tag name.
		if !openerBoundary(lower, i+len(open)) {
			continue
		}
		if closeIdx, ok := matchClose(lower, i, tag); ok && closeIdx >= end {
			content := html[i:closeIdx]
			if vehicleLike(content) {
				return content, true
			}
		}
		// Candidate rejected: keep scanning backward for a wider container.
	}
}

// matchClose walks forward from the opener at i, counting same-tag opens and
// closes, and returns the index just past the close that brings depth back
// to zero.
func matchClose(lower string, i int, tag string) (int, bool) {
	open := "<" + tag
	clos := "</" + tag
	depth := 0
	j := i
	for j < len(lower) {
		nextOpen := strings.Index(lower[j:], open)
		nextClose := strings.Index(lower[j:], clos)
		if nextClose < 0 {
			return 0, false // unbalanced markup
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			at := j + nextOpen
			j = at + len(open)
			if openerBoundary(lower, j) && !selfClosing(lower, at) {
				depth++
			}
			continue
		}
		at := j + nextClose
		j = at + len(clos)
		depth--
		if depth == 0 {
			// Include the close tag itself.
			if gt := strings.IndexByte(lower[j:], '>'); gt >= 0 {
				return j + gt + 1, true
			}
			return j, true
		}
	}
	return 0, false
}

// openerBoundary checks the character after "<tag" terminates the tag name.
func openerBoundary(lower string, after int) bool {
	if after >= len(lower) {
		return false
	}
	c := lower[after]
	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/'
}

// selfClosing reports whether the tag starting at i ends with "/>".
func selfClosing(lower string, i int) bool {
	gt := strings.IndexByte(lower[i:], '>')
	if gt < 1 {
		return false
	}
	return lower[i+gt-1] == '/'
}

// vehicleLike gates container acceptance: a card must carry a year, a price,
// or a mileage figure somewhere in its text.
func vehicleLike(content string) bool {
	return yearToken.MatchString(content) ||
		priceToken.MatchString(content) ||
		mileageToken.MatchString(content)
}
