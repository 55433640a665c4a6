// Package logging provides structured logging configuration using zerolog
// for the aggregator's components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// Valid reports whether l names a known level.
func (l LogLevel) Valid() bool {
	switch strings.ToLower(string(l)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForRequest creates a component logger carrying a request id.
func ForRequest(component, requestID string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("request_id", requestID).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Layer cache hits and restores from the store
//   - Module builds (module id, file, size)
//   - Loader extension contributions
//
// Info: Normal operation events
//   - Layer builds (key, size, duration)
//   - Cache clears and configuration reloads
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Redis store failures (request served from a fresh build)
//   - Failed module batches before they surface as build errors
//
// Error: Error conditions requiring attention
//   - Layer build failures
//   - Listener failures
//   - Configuration errors
//
// Context Fields:
//   - component: Subsystem emitting the entry
//   - key: Composite layer cache key
//   - module: Module id
//   - duration: Build or request duration
//   - size: Layer or module size in bytes
//   - request_id: Per-request id set by the HTTP middleware
//   - status: HTTP status code
