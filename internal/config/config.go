// Package config provides configuration loading for the roadtrip server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Keys      KeysConfig      `yaml:"keys"`
	Limits    LimitsConfig    `yaml:"limits"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Planner   PlannerConfig   `yaml:"planner"`
	Places    PlacesConfig    `yaml:"places"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// KeysConfig holds upstream API credentials. Environment variables
// override the file: OPENAI_API_KEY and GOOGLE_PLACES_API_KEY.
type KeysConfig struct {
	OpenAI string `yaml:"openai_api_key"`
	Google string `yaml:"google_places_api_key"`
}

// LimitConfig is one dual-window rate limit budget.
type LimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// LimitsConfig holds the per-upstream budgets.
type LimitsConfig struct {
	OpenAI    LimitConfig `yaml:"openai"`
	Google    LimitConfig `yaml:"google"`
	Embedding LimitConfig `yaml:"embedding"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTLSeconds   int `yaml:"ttl_seconds"`
	SweepSeconds int `yaml:"sweep_seconds"`
}

// CatalogConfig holds the embedding catalog location and watch settings.
type CatalogConfig struct {
	Path       string `yaml:"path"`
	Watch      *bool  `yaml:"watch"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// WatchOrDefault returns whether to watch the catalog file for
// replacements; defaults to true when unset.
func (c *CatalogConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// EmbeddingConfig holds embedder settings. Dimensions left at zero
// means the chosen provider's native width.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// PlannerConfig holds LLM trip-outline settings.
type PlannerConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

// PlacesConfig holds Google Places client settings.
type PlacesConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands relative paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
// Catalog and model paths stay relative to the working directory.
func Default() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on cfg. API keys always win
// over the file; rate limit overrides follow the original deployment's
// variable names.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GOOGLE_PLACES_API_KEY"); v != "" {
		cfg.Keys.Google = v
	}

	overrides := []struct {
		name string
		dst  *int
	}{
		{"OPENAI_RATE_LIMIT_PER_MINUTE", &cfg.Limits.OpenAI.PerMinute},
		{"OPENAI_RATE_LIMIT_PER_DAY", &cfg.Limits.OpenAI.PerDay},
		{"GOOGLE_RATE_LIMIT_PER_MINUTE", &cfg.Limits.Google.PerMinute},
		{"GOOGLE_RATE_LIMIT_PER_DAY", &cfg.Limits.Google.PerDay},
	}
	for _, o := range overrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", o.name, err)
		}
		*o.dst = n
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
