package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup_Filtering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{LevelDebug, []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{LevelInfo, []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{LevelWarn, []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{LevelError, []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})

			logger := NewLogger("layer-cache")
			logger.Debug().Msg("debug msg")
			logger.Info().Msg("info msg")
			logger.Warn().Msg("warn msg")
			logger.Error().Msg("error msg")

			output := buf.String()
			for _, msg := range tt.visible {
				if !strings.Contains(output, msg) {
					t.Errorf("Expected output to contain %q, got %q", msg, output)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(output, msg) {
					t.Errorf("Expected %q to be filtered at %s level", msg, tt.level)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogLevel_Valid(t *testing.T) {
	for _, l := range []LogLevel{"debug", "INFO", "warn", "warning", "error"} {
		if !l.Valid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []LogLevel{"", "trace", "verbose"} {
		if l.Valid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestComponentFields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	transport := NewLogger("transport")
	transport.Info().Msg("loader extension reset")
	req := ForRequest("http", "req-42")
	req.Info().Msg("served layer")

	output := buf.String()
	for _, want := range []string{`"component":"transport"`, `"component":"http"`, `"request_id":"req-42"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %s, got %q", want, output)
		}
	}
}
