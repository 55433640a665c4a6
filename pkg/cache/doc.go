// Package cache persists built layers in Redis so that several aggregator
// processes can share build work.
//
// Manager implements layer.Store:
//
// - Entries are JSON, keyed by the SHA-256 of the composite cache key
// - Redis TTL follows the layer's expiry
// - Flush removes only keys under the manager's prefix
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Back a layer cache with Redis
//	cache, err := layer.New(layer.Config{
//		Builder: assembler,
//		Store:   cache.NewManager(redisClient),
//	})
//
// # Conditional Responses
//
//	if cache.IsNotModified(r, l) {
//		w.WriteHeader(http.StatusNotModified)
//		return
//	}
//	cache.SetCacheHeaders(w.Header(), l, req.NoCache())
//
// # Metrics
//
//   - amd_layer_store_hits_total - Layers restored from Redis
//   - amd_layer_store_misses_total - Store misses
//   - amd_layer_store_written_bytes_total - Bytes written
//   - amd_layer_store_errors_total{operation} - Store operation errors
package cache
