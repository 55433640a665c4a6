package server

import (
	"bytes"
	"net/http"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/amd-aggregator/pkg/cache"
)

const javascriptContentType = "application/javascript; charset=utf-8"

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	req, err := s.transport.DecorateRequest(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected aggregator request")
		writeAggregateError(w, err)
		return
	}

	l, err := s.cache.GetLayer(r.Context(), req)
	if err != nil {
		status, _ := classify(err)
		ev := logger.Warn()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).Str("modules", req.ModulesString()).Msg("Layer request failed")
		writeAggregateError(w, err)
		return
	}

	cache.SetCacheHeaders(w.Header(), l, req.NoCache())
	if !req.NoCache() && cache.IsNotModified(r, l) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", javascriptContentType)
	w.Header().Set("Content-Length", strconv.Itoa(l.Size()))
	w.WriteHeader(http.StatusOK)
	if _, err := l.WriteTo(w); err != nil {
		logger.Debug().Err(err).Msg("Client went away while writing layer")
	}
}

func (s *Server) handleLoaderExtension(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", javascriptContentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(s.transport.LoaderExtensionJavaScript()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"layers": s.cache.Size(),
	})
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	var filter *regexp.Regexp
	if expr := r.URL.Query().Get("filter"); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		filter = re
	}

	// Buffered so a failed snapshot can still be reported with a status.
	var buf bytes.Buffer
	if err := s.cache.Dump(&buf, filter); err != nil {
		status, code := classify(err)
		writeError(w, status, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.cache.Keys()
	writeJSON(w, http.StatusOK, map[string]any{
		"size": len(keys),
		"keys": keys,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()
	zerolog.Ctx(r.Context()).Info().Msg("Layer cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing_key", "query parameter key is required")
		return
	}
	if _, ok := s.cache.Remove(key); !ok {
		writeError(w, http.StatusNotFound, "not_found", "no layer cached for key")
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("key", key).Msg("Layer removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	n := s.Reload()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "reloaded",
		"contributions": n,
	})
}
