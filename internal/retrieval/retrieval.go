// Package retrieval sequences cache, admission, and upstream fetch for
// place searches. The cache is consulted before the rate limiter, so
// repeated queries cost no budget; the limiter is recorded only after a
// successful fetch.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
)

// Searcher is the upstream text-search dependency.
type Searcher interface {
	SearchText(ctx context.Context, query string, maxResults int) ([]models.PlaceSummary, error)
}

// PlacesService answers place searches cache-first.
type PlacesService struct {
	searcher Searcher
	limiter  *ratelimit.Limiter
	cache    *cache.Cache[[]models.PlaceSummary]
	group    singleflight.Group
	logger   *zap.Logger
}

// Option configures a PlacesService.
type Option func(*PlacesService)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *PlacesService) { s.logger = l }
}

// NewPlacesService wires a searcher behind searchCache and limiter.
func NewPlacesService(searcher Searcher, limiter *ratelimit.Limiter, searchCache *cache.Cache[[]models.PlaceSummary], opts ...Option) *PlacesService {
	s := &PlacesService{
		searcher: searcher,
		limiter:  limiter,
		cache:    searchCache,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit places for query. A cache hit that covers
// the requested limit is served directly; a hit with fewer stored
// results counts as a miss and is refetched, with the longer payload
// overwriting the shorter one. Only a miss consults the limiter, and a
// denial surfaces as *ratelimit.DeniedError before any upstream call.
func (s *PlacesService) Search(ctx context.Context, query string, limit int) ([]models.PlaceSummary, error) {
	if limit <= 0 {
		return []models.PlaceSummary{}, nil
	}
	if hit, ok := s.cache.Get(query); ok && len(hit) >= limit {
		s.logger.Debug("search cache hit", zap.String("query", query))
		return hit[:limit:limit], nil
	}

	// Concurrent misses for the same normalized query and page size
	// collapse into one upstream call.
	key := fmt.Sprintf("%s|%d", cache.Normalize(query), limit)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	results := v.([]models.PlaceSummary)
	if len(results) > limit {
		results = results[:limit:limit]
	}
	return results, nil
}

func (s *PlacesService) fetch(ctx context.Context, query string, limit int) ([]models.PlaceSummary, error) {
	// A racing flight may have filled the cache while this call queued.
	if hit, ok := s.cache.Get(query); ok && len(hit) >= limit {
		return hit, nil
	}

	allowed, reason := s.limiter.Check()
	if !allowed {
		s.logger.Warn("search denied",
			zap.String("query", query),
			zap.String("reason", reason))
		return nil, &ratelimit.DeniedError{Resource: s.limiter.Name(), Reason: reason}
	}

	results, err := s.searcher.SearchText(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search places: %w", err)
	}

	s.cache.Set(query, results)
	s.limiter.Record()
	s.logger.Info("places fetched",
		zap.String("query", query),
		zap.Int("count", len(results)))
	return results, nil
}

// CacheStats reports the search cache's size and counters.
func (s *PlacesService) CacheStats() models.CacheStats {
	stats := s.cache.Stats()
	return models.CacheStats{Entries: s.cache.Len(), Hits: stats.Hits, Misses: stats.Misses}
}

// LimiterStatus reports the search limiter's window usage.
func (s *PlacesService) LimiterStatus() ratelimit.Status { return s.limiter.Status() }
