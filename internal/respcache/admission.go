// Package respcache implements the HTTP response cache: admission
// control, the cache key, storage atop the rubber arena (or an optional
// remote large-object backend), single-flight coalescing of concurrent
// misses, and conditional-GET revalidation.
package respcache

import (
	"net/http"
	"strings"
)

// MaxCacheableBody is the default max cacheable body size.
const MaxCacheableBody = 256 * 1024

var cacheableStatus = map[int]bool{
	200: true, 203: true, 300: true, 301: true, 410: true,
}

// Admit reports whether a response is eligible for caching.
func Admit(method string, status int, header http.Header, bodySize int64, maxBody int64) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	if !cacheableStatus[status] {
		return false
	}
	if maxBody <= 0 {
		maxBody = MaxCacheableBody
	}
	if bodySize > maxBody {
		return false
	}
	cc := header.Get("Cache-Control")
	if containsDirective(cc, "no-store") || containsDirective(cc, "private") {
		return false
	}
	if header.Get("Vary") == "*" {
		return false
	}
	return true
}

func containsDirective(cacheControl, directive string) bool {
	for _, part := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(part), directive) {
			return true
		}
	}
	return false
}
