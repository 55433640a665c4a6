package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestETagMatches(t *testing.T) {
	tests := []struct {
		name        string
		ifNoneMatch string
		etag        string
		want        bool
	}{
		{"exact", `"abc"`, `"abc"`, true},
		{"list", `"x", "abc"`, `"abc"`, true},
		{"weak", `W/"abc"`, `"abc"`, true},
		{"wildcard", `*`, `"abc"`, true},
		{"different", `"x"`, `"abc"`, false},
		{"empty header", ``, `"abc"`, false},
		{"empty etag", `"abc"`, ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ETagMatches(tt.ifNoneMatch, tt.etag); got != tt.want {
				t.Errorf("ETagMatches(%q, %q) = %v, want %v", tt.ifNoneMatch, tt.etag, got, tt.want)
			}
		})
	}
}

func TestSetCacheHeaders(t *testing.T) {
	expiring := testLayer("a", time.Now().Add(time.Hour))
	forever := testLayer("b", time.Time{})

	h := http.Header{}
	SetCacheHeaders(h, expiring, false)
	if h.Get("ETag") != expiring.ETag() {
		t.Errorf("ETag = %q", h.Get("ETag"))
	}
	if cc := h.Get("Cache-Control"); !strings.HasPrefix(cc, "public, max-age=35") {
		t.Errorf("Cache-Control = %q, want about an hour", cc)
	}
	if h.Get("Expires") == "" {
		t.Error("Expires header missing")
	}

	h = http.Header{}
	SetCacheHeaders(h, forever, false)
	if cc := h.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("Cache-Control = %q, want default max-age", cc)
	}
	if h.Get("Expires") != "" {
		t.Error("Expires header set for layer without expiry")
	}

	h = http.Header{}
	SetCacheHeaders(h, expiring, true)
	if h.Get("Cache-Control") != "no-store" || h.Get("ETag") != "" {
		t.Errorf("no-cache headers = %v", h)
	}
}

func TestIsNotModified(t *testing.T) {
	l := testLayer("a", time.Time{})

	r := httptest.NewRequest(http.MethodGet, "/aggregate?modules=a", nil)
	if IsNotModified(r, l) {
		t.Error("request without If-None-Match should not be 304")
	}

	r.Header.Set("If-None-Match", l.ETag())
	if !IsNotModified(r, l) {
		t.Error("matching If-None-Match should be 304")
	}
	if IsNotModified(nil, l) || IsNotModified(r, nil) {
		t.Error("nil arguments should not be 304")
	}
}

func TestRedisKey(t *testing.T) {
	a := RedisKey(DefaultKeyPrefix, `mods="a"`)
	b := RedisKey(DefaultKeyPrefix, `mods="b"`)

	if !strings.HasPrefix(a, DefaultKeyPrefix) || len(a) != len(DefaultKeyPrefix)+64 {
		t.Errorf("RedisKey() = %q", a)
	}
	if a == b {
		t.Error("different keys map to the same Redis key")
	}
	if a != RedisKey(DefaultKeyPrefix, `mods="a"`) {
		t.Error("RedisKey() not deterministic")
	}
}

func TestEntryFromLayer(t *testing.T) {
	l := testLayer("a", time.Now().Add(time.Minute))
	e := EntryFromLayer(l)

	if e.Key != "a" || e.ETag != l.ETag() || e.IsExpired() || e.TTL() <= 0 {
		t.Errorf("entry = %+v", e)
	}
	back := e.Layer()
	if back.ETag() != l.ETag() || back.Key() != l.Key() || !back.Expires().Equal(l.Expires()) {
		t.Error("Layer() did not restore the layer")
	}

	if (&LayerEntry{}).TTL() != -1 {
		t.Error("entry without expiry should report TTL -1")
	}
}
