package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/amd-aggregator/internal/config"
	"github.com/Sternrassler/amd-aggregator/pkg/builder"
	"github.com/Sternrassler/amd-aggregator/pkg/cache"
	"github.com/Sternrassler/amd-aggregator/pkg/layer"
	"github.com/Sternrassler/amd-aggregator/pkg/logging"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// Components are the parts of a running aggregator.
type Components struct {
	Transport *transport.HTTPTransport
	Modules   *builder.FileBuilder
	Layers    *layer.LayerCache

	// Store and Redis are nil unless cache.redis.addr is configured.
	Store *cache.Manager
	Redis *redis.Client
}

// Close closes the layer cache and the Redis connection.
func (c *Components) Close() error {
	var errs []error
	if c.Layers != nil {
		errs = append(errs, c.Layers.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	return errors.Join(errs...)
}

// Wire builds a Server from cfg. The Redis store is connected and pinged
// when configured; a failed ping is an error.
func Wire(ctx context.Context, cfg *config.Config) (*Server, *Components, error) {
	if _, err := os.Stat(cfg.Modules.Root); err != nil {
		return nil, nil, fmt.Errorf("module root: %w", err)
	}

	comps := &Components{
		Transport: transport.NewHTTPTransport(logging.NewLogger("transport")),
		Modules:   builder.NewFileBuilder(os.DirFS(cfg.Modules.Root), logging.NewLogger("modules")),
	}

	asm, err := layer.NewAssembler(layer.AssemblerConfig{
		Transport: comps.Transport,
		Modules:   comps.Modules,
		Batch: builder.NewBatch(builder.BatchConfig{
			MaxConcurrency: cfg.Modules.MaxConcurrency,
			Timeout:        config.Duration(cfg.Modules.BuildTimeout),
		}),
		Logger: logging.NewLogger("assembler"),
	})
	if err != nil {
		return nil, nil, err
	}

	var store layer.Store
	if cfg.RedisEnabled() {
		comps.Redis = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		if err := comps.Redis.Ping(ctx).Err(); err != nil {
			_ = comps.Redis.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		comps.Store = cache.NewManager(comps.Redis,
			cache.WithKeyPrefix(cfg.Cache.Redis.Prefix),
			cache.WithDefaultTTL(config.Duration(cfg.Cache.Redis.TTL)),
		)
		store = comps.Store
	}

	var generators []transport.CacheKeyGenerator
	generators = append(generators, comps.Transport.CacheKeyGenerators()...)
	generators = append(generators, comps.Modules.CacheKeyGenerators()...)
	comps.Layers, err = layer.New(layer.Config{
		Builder:    asm,
		Generators: generators,
		MaxAge:     config.Duration(cfg.Cache.MaxAge),
		Store:      store,
		Logger:     logging.NewLogger("layers"),
	})
	if err != nil {
		_ = comps.Close()
		return nil, nil, err
	}

	srv, err := New(Options{
		Transport:       comps.Transport,
		Cache:           comps.Layers,
		Extensions:      cfg.Loader.Extensions,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout),
		Logger:          logging.NewLogger("server"),
	})
	if err != nil {
		_ = comps.Close()
		return nil, nil, err
	}

	srv.logger.Info().
		Str("module_root", cfg.Modules.Root).
		Bool("redis", cfg.RedisEnabled()).
		Int("generators", len(generators)).
		Msg("Aggregator wired")

	return srv, comps, nil
}
