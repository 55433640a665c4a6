// Package layer builds and caches aggregated AMD responses.
//
// A layer is the full response for one decoded request: every requested
// module framed by the transport's contributions, optionally followed by a
// required-modules section. Layers are keyed by a composite key covering
// the canonical request and the output of every registered cache key
// generator.
//
// # Basic Usage
//
//	tr := transport.NewHTTPTransport(logging.NewLogger("transport"))
//	files := builder.NewFileBuilder(os.DirFS("web"), logging.NewLogger("modules"))
//
//	asm, _ := layer.NewAssembler(layer.AssemblerConfig{Transport: tr, Modules: files})
//	cache, _ := layer.New(layer.Config{
//		Builder:    asm,
//		Generators: files.CacheKeyGenerators(),
//		MaxAge:     time.Hour,
//	})
//
//	req, err := tr.DecorateRequest(r)
//	l, err := cache.GetLayer(ctx, req)
//	l.WriteTo(w)
//
// # Single Flight
//
// Concurrent GetLayer calls for the same key share one build. Every caller
// receives the same layer or the same *BuildError. Failed builds are not
// cached. A build that is still running when its key is removed or the
// cache is cleared is handed to its waiters but not stored.
//
// # Persistence
//
// A Store (see package cache) may back the in-memory map. It is consulted
// inside the build on a miss and written through after a successful build.
// Store failures are logged and never fail a request.
//
// # Metrics
//
//   - amd_layer_cache_hits_total - In-memory hits
//   - amd_layer_cache_misses_total - Misses (store lookup or build)
//   - amd_layer_shared_builds_total - Callers served by another caller's build
//   - amd_layer_builds_total{result} - Builds by result (success, error, discarded)
//   - amd_layer_build_duration_seconds - Build time
//   - amd_layer_cache_entries - Cached layers
package layer
