package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/amd-aggregator/pkg/layer"
)

var (
	// ErrCacheMiss indicates the requested layer was not found in Redis.
	// It matches layer.ErrNotFound.
	ErrCacheMiss = fmt.Errorf("cache miss: %w", layer.ErrNotFound)

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the SCAN count and DEL batch size used by Flush.
const scanBatch = 100

// Manager stores built layers in Redis. It implements layer.Store.
type Manager struct {
	redis  *redis.Client
	prefix string

	// ttl applies to layers that never expire. Zero keeps them until
	// deleted or flushed.
	ttl time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(m *Manager) { m.prefix = prefix }
}

// WithDefaultTTL bounds how long layers without an expiry stay in Redis.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// NewManager creates a new layer store with Redis backend.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{
		redis:  redisClient,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load retrieves a layer by composite key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Load(ctx context.Context, key string) (*layer.Layer, error) {
	redisKey := RedisKey(m.prefix, key)

	data, err := m.redis.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			return nil, ErrCacheMiss
		}
		StoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry LayerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Guard against digest collisions
	if entry.Key != key {
		StoreMisses.Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		StoreMisses.Inc()
		return nil, ErrCacheMiss
	}

	StoreHits.Inc()
	return entry.Layer(), nil
}

// Save stores a layer with a TTL matching its expiry.
func (m *Manager) Save(ctx context.Context, l *layer.Layer) error {
	if l == nil {
		return fmt.Errorf("layer cannot be nil")
	}

	entry := EntryFromLayer(l)

	ttl := entry.TTL()
	switch {
	case ttl == 0:
		// Already expired, don't store
		return nil
	case ttl < 0:
		ttl = m.ttl
	}

	data, err := json.Marshal(entry)
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal layer entry: %w", err)
	}

	if err := m.redis.Set(ctx, RedisKey(m.prefix, l.Key()), data, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoreBytes.Add(float64(len(data)))
	return nil
}

// Delete removes a stored layer.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, RedisKey(m.prefix, key)).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Flush removes every layer under the manager's prefix. Other keys in the
// database are left alone.
func (m *Manager) Flush(ctx context.Context) error {
	iter := m.redis.Scan(ctx, 0, m.prefix+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := m.redis.Del(ctx, batch...).Err(); err != nil {
				StoreErrors.WithLabelValues("flush").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		StoreErrors.WithLabelValues("flush").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := m.redis.Del(ctx, batch...).Err(); err != nil {
			StoreErrors.WithLabelValues("flush").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Ensure Manager implements layer.Store
var _ layer.Store = (*Manager)(nil)
