package server

import (
	"net/http"
	"net/url"
	"strings"
)

// originChecker holds the normalized allowlist built from configuration.
// A single "*" entry allows every origin; requests without an Origin
// header are treated as non-browser clients and allowed.
type originChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{})}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(trimmed); ok {
			oc.allowed[normalized] = struct{}{}
		}
	}

	return oc
}

func (oc *originChecker) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}
	if oc.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}

	_, exists := oc.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
