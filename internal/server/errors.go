package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/amd-aggregator/pkg/builder"
	"github.com/Sternrassler/amd-aggregator/pkg/layer"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

type apiError struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Module    string `json:"module,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apiError{
		Code:      code,
		Message:   msg,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

// classify maps an aggregation error to a status and error code.
func classify(err error) (int, string) {
	var snap *layer.SnapshotError
	switch {
	case errors.Is(err, transport.ErrRequestDecode):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, layer.ErrClosed), errors.As(err, &snap):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, builder.ErrModuleNotFound):
		return http.StatusNotFound, "module_not_found"
	case errors.Is(err, builder.ErrInvalidModuleID), errors.Is(err, builder.ErrUnsupportedPlugin):
		return http.StatusBadRequest, "invalid_module"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, layer.ErrBuild):
		return http.StatusInternalServerError, "build_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeAggregateError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := apiError{
		Code:      code,
		Message:   err.Error(),
		RequestID: w.Header().Get(requestIDHeader),
	}
	var be *layer.BuildError
	if errors.As(err, &be) {
		body.Module = be.Module
	}
	writeJSON(w, status, body)
}
