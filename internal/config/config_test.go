package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ".", cfg.Modules.Root)
	assert.Equal(t, 8, cfg.Modules.MaxConcurrency)
	assert.Equal(t, time.Duration(0), Duration(cfg.Cache.MaxAge))
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "amd.yaml", `
server:
  addr: ":9090"
log:
  level: debug
modules:
  root: ./web
  max_concurrency: 4
cache:
  max_age: 1h
  redis:
    addr: localhost:6379
    db: 2
loader:
  extensions:
    - "urlProcessors.push(function(u){return u;});"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "./web", cfg.Modules.Root)
	assert.Equal(t, 4, cfg.Modules.MaxConcurrency)
	assert.Equal(t, time.Hour, Duration(cfg.Cache.MaxAge))
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, "amd:layer:", cfg.Cache.Redis.Prefix)
	assert.Len(t, cfg.Loader.Extensions, 1)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "amd.yaml", "server:\n  addr: \":9090\"\n")

	t.Setenv("AMD_ADDR", ":7070")
	t.Setenv("AMD_LOG_LEVEL", "warn")
	t.Setenv("AMD_MODULE_ROOT", "/srv/modules")
	t.Setenv("AMD_MODULE_WORKERS", "16")
	t.Setenv("AMD_REDIS_ADDR", "redis:6379")
	t.Setenv("AMD_CACHE_MAX_AGE", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/modules", cfg.Modules.Root)
	assert.Equal(t, 16, cfg.Modules.MaxConcurrency)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 30*time.Minute, Duration(cfg.Cache.MaxAge))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"bad duration", "cache:\n  max_age: forever\n"},
		{"negative duration", "server:\n  shutdown_timeout: -1s\n"},
		{"bad workers", "modules:\n  max_concurrency: -2\n"},
		{"bad yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "amd.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, "test.env", "AMD_TEST_DOTENV=from-file\nAMD_TEST_PRESET=from-file\n")
	t.Setenv("AMD_TEST_PRESET", "from-env")
	t.Setenv("AMD_TEST_DOTENV", "")
	os.Unsetenv("AMD_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("AMD_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("AMD_TEST_PRESET"), ".env must not override the environment")

	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, Duration(cfg.Server.ShutdownTimeout))
}
