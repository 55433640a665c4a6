// Package server exposes the aggregator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/amd-aggregator/pkg/layer"
	"github.com/Sternrassler/amd-aggregator/pkg/metrics"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// Cache is the layer cache as seen by the HTTP surface.
type Cache interface {
	layer.Cache
	Dump(w io.Writer, filter *regexp.Regexp) error
}

// Options configures a Server.
type Options struct {
	Transport transport.Transport
	Cache     Cache

	// Extensions are contributed to the loader extension module on start
	// and after every reload.
	Extensions []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Logger zerolog.Logger
}

// Server serves aggregated layers and the admin API.
type Server struct {
	transport transport.Transport
	cache     Cache
	logger    zerolog.Logger

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	// reloadMu serializes reloads so contributions are never interleaved.
	reloadMu   sync.Mutex
	extensions []string

	router chi.Router
}

// New creates a Server and registers the configured loader extensions.
func New(opts Options) (*Server, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		transport:       opts.Transport,
		cache:           opts.Cache,
		logger:          opts.Logger,
		readTimeout:     opts.ReadTimeout,
		writeTimeout:    opts.WriteTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		extensions:      append([]string(nil), opts.Extensions...),
	}
	for _, ext := range s.extensions {
		s.transport.ContributeLoaderExtensionJavaScript(ext)
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.Get("/aggregate", s.handleAggregate)
	r.Get("/loaderExt.js", s.handleLoaderExtension)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Get("/layers", s.handleDump)
		r.Get("/layers/keys", s.handleKeys)
		r.Delete("/layers", s.handleClear)
		r.Delete("/layers/entry", s.handleRemove)
		r.Post("/reload", s.handleReload)
	})

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload replaces all loader extension contributions with the configured
// extensions and clears the layer cache.
func (s *Server) Reload() int {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.transport.Replace(s.extensions)
	s.cache.Clear()

	s.logger.Info().
		Int("extensions", len(s.extensions)).
		Msg("Configuration reloaded")
	return len(s.extensions)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting AMD aggregator")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
