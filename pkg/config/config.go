// Package config loads gateway and CLI settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables (a .env file in the working directory is loaded into
// the environment first).
//
// Environment variables:
//
//	OPENROUTER_API_KEY   API key (required)
//	OPENROUTER_BASE_URL  API root (default: https://openrouter.ai/api/v1)
//	OPENROUTER_REFERER   HTTP-Referer sent for app attribution
//	OPENROUTER_TITLE     X-Title sent for app attribution
//	GRPC_PORT            gRPC gateway port (default: 50051)
//	METRICS_PORT         Prometheus metrics HTTP port (default: 9090)
//	REDIS_ADDR           Redis address; empty disables the shared catalog cache
//	REDIS_PASSWORD       Redis password (default: "")
//	REDIS_DB             Redis database (default: 0)
//	CATALOG_TTL          Model catalog cache TTL (default: 1h)
//	CATALOG_LRU_SIZE     In-process catalog cache entries (default: 512)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abdhe/openrouter-go/pkg/openrouter"
)

// ErrMissingAPIKey is returned by Validate when no API key is configured.
var ErrMissingAPIKey = errors.New("config: OPENROUTER_API_KEY is not set")

// Config holds every setting of the gateway and the CLI.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`

	GRPCPort    string `yaml:"grpc_port"`
	MetricsPort string `yaml:"metrics_port"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
	CatalogLRUSize int           `yaml:"catalog_lru_size"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:        openrouter.DefaultBaseURL,
		GRPCPort:       "50051",
		MetricsPort:    "9090",
		CatalogTTL:     time.Hour,
		CatalogLRUSize: 512,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty) and the environment. It does not validate the result.
func Load(path string) (Config, error) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.APIKey = envOrDefault("OPENROUTER_API_KEY", cfg.APIKey)
	cfg.BaseURL = envOrDefault("OPENROUTER_BASE_URL", cfg.BaseURL)
	cfg.Referer = envOrDefault("OPENROUTER_REFERER", cfg.Referer)
	cfg.Title = envOrDefault("OPENROUTER_TITLE", cfg.Title)
	cfg.GRPCPort = envOrDefault("GRPC_PORT", cfg.GRPCPort)
	cfg.MetricsPort = envOrDefault("METRICS_PORT", cfg.MetricsPort)
	cfg.RedisAddr = envOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envIntOrDefault("REDIS_DB", cfg.RedisDB)
	cfg.CatalogTTL = envDurationOrDefault("CATALOG_TTL", cfg.CatalogTTL)
	cfg.CatalogLRUSize = envIntOrDefault("CATALOG_LRU_SIZE", cfg.CatalogLRUSize)
	return cfg, nil
}

// Validate reports settings the gateway cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.CatalogLRUSize <= 0 {
		return fmt.Errorf("config: catalog_lru_size must be positive, got %d", c.CatalogLRUSize)
	}
	return nil
}

// ClientOptions returns the openrouter.Client options implied by c.
func (c Config) ClientOptions() []openrouter.Option {
	opts := []openrouter.Option{openrouter.WithBaseURL(c.BaseURL)}
	if c.Referer != "" {
		opts = append(opts, openrouter.WithHeader("HTTP-Referer", c.Referer))
	}
	if c.Title != "" {
		opts = append(opts, openrouter.WithHeader("X-Title", c.Title))
	}
	return opts
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
