package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/amd-aggregator/pkg/layer"
)

const (
	// DefaultMaxAge is the client cache lifetime for layers that never
	// expire server side.
	DefaultMaxAge = 5 * time.Minute
)

// ETagMatches reports whether an If-None-Match header value matches etag.
// Weak validators compare equal to their strong form.
func ETagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

// SetCacheHeaders sets ETag and Cache-Control on a layer response.
// No-cache responses are marked no-store and carry no validator.
func SetCacheHeaders(h http.Header, l *layer.Layer, noCache bool) {
	if noCache {
		h.Set("Cache-Control", "no-store")
		return
	}

	h.Set("ETag", l.ETag())

	maxAge := DefaultMaxAge
	if ttl := l.TTL(); ttl >= 0 {
		maxAge = ttl
	}
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge/time.Second)))
	if !l.Expires().IsZero() {
		h.Set("Expires", l.Expires().UTC().Format(http.TimeFormat))
	}
}

// IsNotModified reports whether r can be answered with 304 for layer l.
func IsNotModified(r *http.Request, l *layer.Layer) bool {
	if r == nil || l == nil {
		return false
	}
	return ETagMatches(r.Header.Get("If-None-Match"), l.ETag())
}
