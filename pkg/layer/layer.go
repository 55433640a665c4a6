package layer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"
)

// GeneratorValue is the output of one cache key generator for a layer.
type GeneratorValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Meta describes how a layer was built.
type Meta struct {
	Modules    []string
	Required   []string
	Generators []GeneratorValue
	BuiltAt    time.Time

	// Expires is when the layer stops being served. Zero means never.
	Expires time.Time
}

// Layer is a fully built response. It is immutable and safe to share
// between goroutines.
type Layer struct {
	key     string
	content []byte
	etag    string
	meta    Meta
}

// NewLayer creates a layer. content and the slices in meta are copied.
func NewLayer(key string, content []byte, meta Meta) *Layer {
	sum := sha256.Sum256(content)
	return &Layer{
		key:     key,
		content: append([]byte(nil), content...),
		etag:    `"` + hex.EncodeToString(sum[:8]) + `"`,
		meta: Meta{
			Modules:    append([]string(nil), meta.Modules...),
			Required:   append([]string(nil), meta.Required...),
			Generators: append([]GeneratorValue(nil), meta.Generators...),
			BuiltAt:    meta.BuiltAt,
			Expires:    meta.Expires,
		},
	}
}

// Key returns the composite cache key.
func (l *Layer) Key() string { return l.key }

// Size returns the content length in bytes.
func (l *Layer) Size() int { return len(l.content) }

// ETag returns a strong entity tag derived from the content.
func (l *Layer) ETag() string { return l.etag }

// Reader returns a reader over the content.
func (l *Layer) Reader() io.Reader { return bytes.NewReader(l.content) }

// Bytes returns a copy of the content.
func (l *Layer) Bytes() []byte { return append([]byte(nil), l.content...) }

// WriteTo writes the content to w.
func (l *Layer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(l.content)
	return int64(n), err
}

// Modules returns the requested module ids the layer was built from.
func (l *Layer) Modules() []string { return append([]string(nil), l.meta.Modules...) }

// Required returns the required module ids of the request.
func (l *Layer) Required() []string { return append([]string(nil), l.meta.Required...) }

// GeneratorValues returns the cache key generator outputs recorded at
// build time, in registration order.
func (l *Layer) GeneratorValues() []GeneratorValue {
	return append([]GeneratorValue(nil), l.meta.Generators...)
}

// BuiltAt returns when the layer was built.
func (l *Layer) BuiltAt() time.Time { return l.meta.BuiltAt }

// Expires returns when the layer expires, or the zero time.
func (l *Layer) Expires() time.Time { return l.meta.Expires }

// IsExpired returns true if the layer has an expiry in the past.
func (l *Layer) IsExpired() bool {
	return !l.meta.Expires.IsZero() && time.Now().After(l.meta.Expires)
}

// TTL returns the time until expiration, 0 if already expired, and -1 for
// a layer that never expires.
func (l *Layer) TTL() time.Duration {
	if l.meta.Expires.IsZero() {
		return -1
	}
	ttl := time.Until(l.meta.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// ValidFor reports whether the layer was built with the given generator
// values. A layer restored from a store after a configuration change fails
// this check.
func (l *Layer) ValidFor(values []GeneratorValue) bool {
	if len(values) != len(l.meta.Generators) {
		return false
	}
	for i, v := range values {
		if l.meta.Generators[i] != v {
			return false
		}
	}
	return true
}
