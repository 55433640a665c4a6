// Package config loads aggregator configuration from a YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/amd-aggregator/pkg/logging"
)

// Config is the aggregator configuration.
type Config struct {
	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Modules struct {
		// Root is the directory module ids resolve against.
		Root           string `yaml:"root"`
		MaxConcurrency int    `yaml:"max_concurrency"`
		BuildTimeout   string `yaml:"build_timeout"`
	} `yaml:"modules"`

	Cache struct {
		// MaxAge evicts layers after this long; "0" keeps them.
		MaxAge string `yaml:"max_age"`
		Redis  struct {
			// Addr enables the Redis store when set.
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
			TTL    string `yaml:"ttl"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Loader struct {
		// Extensions are script snippets added to the loader extension
		// module at startup and on every reload.
		Extensions []string `yaml:"extensions"`
	} `yaml:"loader"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads the YAML file at path, fills in defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. An empty path tries ./.env and ignores its absence.
func LoadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "60s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = string(logging.LevelInfo)
	}
	if c.Modules.Root == "" {
		c.Modules.Root = "."
	}
	if c.Modules.MaxConcurrency == 0 {
		c.Modules.MaxConcurrency = 8
	}
	if c.Modules.BuildTimeout == "" {
		c.Modules.BuildTimeout = "15s"
	}
	if c.Cache.MaxAge == "" {
		c.Cache.MaxAge = "0"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "amd:layer:"
	}
	if c.Cache.Redis.TTL == "" {
		c.Cache.Redis.TTL = "24h"
	}
}

// ---- Helpers env ----

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if s := os.Getenv(key); s != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return defaultValue
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = getEnv("AMD_ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout = getEnv("AMD_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Log.Level = getEnv("AMD_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvBool("AMD_LOG_PRETTY", c.Log.Pretty)

	c.Modules.Root = getEnv("AMD_MODULE_ROOT", c.Modules.Root)
	c.Modules.MaxConcurrency = getEnvInt("AMD_MODULE_WORKERS", c.Modules.MaxConcurrency)

	c.Cache.MaxAge = getEnv("AMD_CACHE_MAX_AGE", c.Cache.MaxAge)
	c.Cache.Redis.Addr = getEnv("AMD_REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.DB = getEnvInt("AMD_REDIS_DB", c.Cache.Redis.DB)
	c.Cache.Redis.Prefix = getEnv("AMD_REDIS_PREFIX", c.Cache.Redis.Prefix)
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if !logging.LogLevel(c.Log.Level).Valid() {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Modules.Root == "" {
		errs = append(errs, errors.New("modules.root must not be empty"))
	}
	if c.Modules.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("modules.max_concurrency must be positive, got %d", c.Modules.MaxConcurrency))
	}

	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"modules.build_timeout":   c.Modules.BuildTimeout,
		"cache.max_age":           c.Cache.MaxAge,
		"cache.redis.ttl":         c.Cache.Redis.TTL,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Duration parses a validated duration field. It returns 0 for values that
// do not parse, which Validate rejects.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

// RedisEnabled reports whether the Redis store is configured.
func (c *Config) RedisEnabled() bool {
	return c.Cache.Redis.Addr != ""
}
