// Package urlnorm canonicalizes dealer-supplied URLs so that every component
// of the pipeline crawls from, caches under, and compares against the same
// root form.
package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a host cannot be parsed out of the input.
var ErrInvalidURL = errors.New("invalid url")

// Normalize turns a raw dealer URL into its canonical form: https scheme,
// lowercased host, no leading www, path/query/fragment preserved.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	if u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.HasPrefix(host, ".") {
		return "", ErrInvalidURL
	}
	u.Host = host

	return u.String(), nil
}

// Resolve interprets rel relative to base after normalizing base.
func Resolve(rel, base string) (string, error) {
	canonical, err := Normalize(base)
	if err != nil {
		return "", err
	}
	bu, err := url.Parse(canonical)
	if err != nil {
		return "", ErrInvalidURL
	}
	ru, err := url.Parse(strings.TrimSpace(rel))
	if err != nil {
		return "", ErrInvalidURL
	}
	return bu.ResolveReference(ru).String(), nil
}

// Host extracts the canonical hostname of u, used as the rate-limiting key.
func Host(raw string) (string, error) {
	canonical, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", ErrInvalidURL
	}
	return u.Hostname(), nil
}

// Origin returns scheme://host for a canonical URL, the base for robots.txt
// and sitemap discovery.
func Origin(raw string) (string, error) {
	canonical, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", ErrInvalidURL
	}
	return u.Scheme + "://" + u.Host, nil
}
