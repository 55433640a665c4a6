package cache

import (
	"time"

	"github.com/Sternrassler/amd-aggregator/pkg/layer"
)

// LayerEntry is the stored form of a built layer.
type LayerEntry struct {
	// Key is the composite cache key
	Key string `json:"key"`

	// Content is the layer body
	Content []byte `json:"content"`

	// ETag of the content, kept for diagnostics
	ETag string `json:"etag"`

	Modules    []string               `json:"modules,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Generators []layer.GeneratorValue `json:"generators,omitempty"`

	// BuiltAt is when the layer was built
	BuiltAt time.Time `json:"built_at"`

	// Expires is when the layer stops being served; zero means never
	Expires time.Time `json:"expires,omitempty"`
}

// EntryFromLayer converts a layer to its stored form.
func EntryFromLayer(l *layer.Layer) *LayerEntry {
	return &LayerEntry{
		Key:        l.Key(),
		Content:    l.Bytes(),
		ETag:       l.ETag(),
		Modules:    l.Modules(),
		Required:   l.Required(),
		Generators: l.GeneratorValues(),
		BuiltAt:    l.BuiltAt(),
		Expires:    l.Expires(),
	}
}

// Layer rebuilds the layer. The ETag is recomputed from the content.
func (e *LayerEntry) Layer() *layer.Layer {
	return layer.NewLayer(e.Key, e.Content, layer.Meta{
		Modules:    e.Modules,
		Required:   e.Required,
		Generators: e.Generators,
		BuiltAt:    e.BuiltAt,
		Expires:    e.Expires,
	})
}

// IsExpired returns true if the entry has an expiry in the past.
func (e *LayerEntry) IsExpired() bool {
	return !e.Expires.IsZero() && time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired and -1 if the entry never expires.
func (e *LayerEntry) TTL() time.Duration {
	if e.Expires.IsZero() {
		return -1
	}
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
