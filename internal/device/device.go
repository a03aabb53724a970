// Package device derives coarse request attributes used by the redirect
// path: a platform class from the user agent and a best-effort country code
// from edge-injected headers. Both are intentionally crude; they feed
// analytics buckets and redirect branching, not security decisions.
package device

import (
	"net/http"
	"strings"
)

// Platform is the coarse device class derived from a user agent.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformOther   Platform = "other"
)

// Classify maps a raw user-agent string to a Platform. Unknown and empty
// agents classify as other. Matching is substring-based: real mobile agents
// are too varied for anything stricter to pay off at this granularity.
func Classify(userAgent string) Platform {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return PlatformIOS
	case strings.Contains(ua, "android"):
		return PlatformAndroid
	default:
		return PlatformOther
	}
}

// countryHeaders are checked in order; the first non-empty value wins.
// CDN edges commonly inject one of these.
var countryHeaders = []string{"CF-IPCountry", "X-Geo-Country", "X-Country-Code"}

// Country extracts a two-letter country code from edge headers, best
// effort. Returns "" when nothing usable is present.
func Country(h http.Header) string {
	for _, name := range countryHeaders {
		v := strings.ToUpper(strings.TrimSpace(h.Get(name)))
		if len(v) == 2 && v != "XX" {
			return v
		}
	}
	return ""
}
