package models

import "github.com/henryzhan013/roadtrip-planner/internal/ratelimit"

// CacheStats reports one cache's live entry count and hit/miss counters.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// CatalogInfo describes the currently loaded place catalog.
type CatalogInfo struct {
	Places    int    `json:"places"`
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

// HealthResponse is the body of GET /health. Rate limit keys name the
// guarded upstream (openai, google, embedding).
type HealthResponse struct {
	Status           string                      `json:"status"`
	OpenAIConfigured bool                        `json:"openai_configured"`
	GoogleConfigured bool                        `json:"google_configured"`
	VibeReady        bool                        `json:"vibe_ready"`
	RateLimits       map[string]ratelimit.Status `json:"rate_limits"`
	Caches           map[string]CacheStats       `json:"caches"`
	Catalog          *CatalogInfo                `json:"catalog,omitempty"`
}

// ErrorResponse is the uniform error body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
