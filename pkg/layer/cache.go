package layer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// storeTimeout bounds best-effort store calls made from methods without a
// context.
const storeTimeout = 5 * time.Second

// Builder produces the content of a layer for a request.
type Builder interface {
	Build(ctx context.Context, req *transport.DecodedRequest) ([]byte, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, req *transport.DecodedRequest) ([]byte, error)

// Build calls f(ctx, req).
func (f BuilderFunc) Build(ctx context.Context, req *transport.DecodedRequest) ([]byte, error) {
	return f(ctx, req)
}

// Cache maps composite keys to built layers.
type Cache interface {
	// GetLayer returns the layer for req, building it at most once per key
	// no matter how many callers ask concurrently.
	GetLayer(ctx context.Context, req *transport.DecodedRequest) (*Layer, error)

	Get(key string) (*Layer, bool)
	Contains(key string) bool
	Remove(key string) (*Layer, bool)
	Clear()
	Size() int
	Keys() []string
	Clone() (Cache, error)
}

// Config holds LayerCache configuration.
type Config struct {
	// Builder builds layers on a miss. Required.
	Builder Builder

	// Generators contribute to every composite key, in order.
	Generators []transport.CacheKeyGenerator

	// MaxAge evicts layers this long after they were built. Zero keeps
	// layers until removed.
	MaxAge time.Duration

	// Store is an optional shared tier.
	Store Store

	Logger zerolog.Logger
}

// LayerCache is the in-memory Cache implementation.
//
// A build that is still running when its key is removed, or when the cache
// is cleared, completes for the callers waiting on it but is not stored.
type LayerCache struct {
	builder    Builder
	generators []transport.CacheKeyGenerator
	maxAge     time.Duration
	store      Store
	logger     zerolog.Logger

	flights singleflight.Group

	mu       sync.Mutex
	entries  *gocache.Cache
	inflight map[string]*flight
	closed   bool
}

// flight identifies one build. Remove and Clear drop the token so the
// build can tell it has been invalidated. The field keeps tokens distinct;
// pointers to zero-size values may compare equal.
type flight struct{ _ byte }

// New creates a LayerCache.
func New(cfg Config) (*LayerCache, error) {
	if cfg.Builder == nil {
		return nil, errors.New("layer builder cannot be nil")
	}

	cleanup := time.Duration(0)
	if cfg.MaxAge > 0 {
		cleanup = cfg.MaxAge
	}

	return &LayerCache{
		builder:    cfg.Builder,
		generators: append([]transport.CacheKeyGenerator(nil), cfg.Generators...),
		maxAge:     cfg.MaxAge,
		store:      cfg.Store,
		logger:     cfg.Logger,
		entries:    gocache.New(gocache.NoExpiration, cleanup),
		inflight:   make(map[string]*flight),
	}, nil
}

// Generators returns the registered cache key generators.
func (c *LayerCache) Generators() []transport.CacheKeyGenerator {
	return append([]transport.CacheKeyGenerator(nil), c.generators...)
}

// GetLayer implements Cache.
//
// Requests with the no-cache flag skip the lookup and are never stored.
// Concurrent no-cache requests for the same key still share one build.
// The build runs detached from ctx so that a cancelled caller does not
// fail the others waiting on it.
func (c *LayerCache) GetLayer(ctx context.Context, req *transport.DecodedRequest) (*Layer, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	key, values := ComposeKey(req, c.generators)
	noCache := req.NoCache()

	if !noCache {
		if l, ok := c.Get(key); ok {
			CacheHits.Inc()
			c.logger.Debug().Str("key", key).Msg("Layer cache hit")
			return l, nil
		}
	}
	CacheMisses.Inc()

	flightKey := key
	if noCache {
		flightKey = "nc\x00" + key
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flightKey, func() (any, error) {
		return c.load(buildCtx, key, values, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			SharedBuilds.Inc()
		}
		return res.Val.(*Layer), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs once per in-flight key.
func (c *LayerCache) load(ctx context.Context, key string, values []GeneratorValue, req *transport.DecodedRequest) (*Layer, error) {
	noCache := req.NoCache()
	token := &flight{}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !noCache {
		// A flight for this key may have committed between our lookup and
		// joining the group.
		if v, ok := c.entries.Get(key); ok {
			c.mu.Unlock()
			return v.(*Layer), nil
		}
		c.inflight[key] = token
	}
	c.mu.Unlock()

	if !noCache && c.store != nil {
		if l := c.loadStored(ctx, key, values); l != nil {
			c.commit(key, token, l)
			return l, nil
		}
	}

	start := time.Now()
	content, err := c.builder.Build(ctx, req)
	BuildDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		Builds.WithLabelValues("error").Inc()
		c.abandon(key, token)

		var be *BuildError
		if errors.As(err, &be) {
			be.Key = key
		} else {
			be = &BuildError{Key: key, Err: err}
		}
		c.logger.Error().
			Err(err).
			Str("key", key).
			Str("module", be.Module).
			Dur("duration", time.Since(start)).
			Msg("Layer build failed")
		return nil, be
	}

	builtAt := time.Now()
	meta := Meta{
		Modules:    req.Modules(),
		Required:   req.Required(),
		Generators: values,
		BuiltAt:    builtAt,
	}
	if c.maxAge > 0 {
		meta.Expires = builtAt.Add(c.maxAge)
	}
	l := NewLayer(key, content, meta)

	c.logger.Info().
		Str("key", key).
		Int("size", l.Size()).
		Dur("duration", time.Since(start)).
		Bool("no_cache", noCache).
		Msg("Layer built")

	if noCache {
		Builds.WithLabelValues("success").Inc()
		return l, nil
	}

	if !c.commit(key, token, l) {
		Builds.WithLabelValues("discarded").Inc()
		c.logger.Debug().Str("key", key).Msg("Layer invalidated during build, not cached")
		return l, nil
	}
	Builds.WithLabelValues("success").Inc()

	if c.store != nil {
		if err := c.store.Save(ctx, l); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist layer")
		} else if !c.holds(key, l) {
			// Removed or cleared while saving; the Delete or Flush already ran.
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete invalidated layer")
			}
		}
	}

	return l, nil
}

// holds reports whether l is still the layer cached under key.
func (c *LayerCache) holds(key string, l *Layer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(key)
	return ok && v.(*Layer) == l
}

func (c *LayerCache) loadStored(ctx context.Context, key string, values []GeneratorValue) *Layer {
	l, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Layer store lookup failed")
		}
		return nil
	}
	if l.IsExpired() || !l.ValidFor(values) {
		return nil
	}
	c.logger.Debug().Str("key", key).Msg("Layer restored from store")
	return l
}

// commit stores l if token still owns key. It returns false when the key
// was removed or the cache cleared while the build ran.
func (c *LayerCache) commit(key string, token *flight, l *Layer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight[key] != token {
		return false
	}
	delete(c.inflight, key)

	ttl := gocache.NoExpiration
	if !l.Expires().IsZero() {
		ttl = l.TTL()
		if ttl <= 0 {
			return false
		}
	}
	c.entries.Set(key, l, ttl)
	CacheEntries.Set(float64(c.entries.ItemCount()))
	return true
}

func (c *LayerCache) abandon(key string, token *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] == token {
		delete(c.inflight, key)
	}
}

// Get returns the cached layer for a composite key.
func (c *LayerCache) Get(key string) (*Layer, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Layer), true
}

// Contains reports whether a layer is cached under key.
func (c *LayerCache) Contains(key string) bool {
	_, ok := c.entries.Get(key)
	return ok
}

// Remove detaches and returns the layer cached under key. A build in
// progress for key is invalidated.
func (c *LayerCache) Remove(key string) (*Layer, bool) {
	c.mu.Lock()
	v, ok := c.entries.Get(key)
	c.entries.Delete(key)
	delete(c.inflight, key)
	CacheEntries.Set(float64(c.entries.ItemCount()))
	c.mu.Unlock()

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete stored layer")
		}
	}

	if !ok {
		return nil, false
	}
	return v.(*Layer), true
}

// Clear removes every layer and invalidates every build in progress.
func (c *LayerCache) Clear() {
	c.mu.Lock()
	c.entries.Flush()
	c.inflight = make(map[string]*flight)
	CacheEntries.Set(0)
	c.mu.Unlock()

	c.logger.Info().Msg("Layer cache cleared")

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := c.store.Flush(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to flush layer store")
		}
	}
}

// Size returns the number of cached layers.
func (c *LayerCache) Size() int {
	return len(c.entries.Items())
}

// Keys returns the cached composite keys in sorted order.
func (c *LayerCache) Keys() []string {
	items := c.entries.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a structurally independent copy of the cache. Layers are
// shared since they are immutable. The copy has no store and runs no
// eviction janitor; expired layers are still hidden from it.
func (c *LayerCache) Clone() (Cache, error) {
	snap, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *LayerCache) snapshot() (*LayerCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &SnapshotError{Err: ErrClosed}
	}

	return &LayerCache{
		builder:    c.builder,
		generators: c.generators,
		maxAge:     c.maxAge,
		logger:     c.logger,
		entries:    gocache.NewFrom(gocache.NoExpiration, 0, c.entries.Items()),
		inflight:   make(map[string]*flight),
	}, nil
}

// Close drops every layer. Later GetLayer calls fail with ErrClosed and
// later dumps fail with a SnapshotError. The store is left untouched.
func (c *LayerCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.entries.Flush()
	c.inflight = make(map[string]*flight)
	CacheEntries.Set(0)
	return nil
}

// String implements fmt.Stringer for log output.
func (c *LayerCache) String() string {
	return fmt.Sprintf("LayerCache(size=%d)", c.Size())
}

var _ Cache = (*LayerCache)(nil)
