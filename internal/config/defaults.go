package config

// Budget defaults mirror the demo deployment: generous enough for a
// day of browsing, tight enough that a runaway loop trips the minute
// window first.
const (
	defaultPerMinute = 60
	defaultPerDay    = 1000
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	applyLimitDefaults(&cfg.Limits.OpenAI)
	applyLimitDefaults(&cfg.Limits.Google)
	applyLimitDefaults(&cfg.Limits.Embedding)

	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 30 * 60
	}
	if cfg.Cache.SweepSeconds == 0 {
		cfg.Cache.SweepSeconds = 5 * 60
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "./data/catalog.json"
	}
	if cfg.Catalog.DebounceMS == 0 {
		cfg.Catalog.DebounceMS = 400
	}

	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}

	if cfg.Planner.Model == "" {
		cfg.Planner.Model = "gpt-4o-mini"
	}
	if cfg.Planner.Temperature == 0 {
		cfg.Planner.Temperature = 0.2
	}
}

func applyLimitDefaults(l *LimitConfig) {
	if l.PerMinute == 0 {
		l.PerMinute = defaultPerMinute
	}
	if l.PerDay == 0 {
		l.PerDay = defaultPerDay
	}
}
