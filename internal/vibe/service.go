package vibe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/embedding"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
)

// ErrNotReady means no catalog has been loaded, so vibe search cannot
// serve. Handlers map it to HTTP 503.
var ErrNotReady = errors.New("vibe search unavailable: no catalog loaded")

// maxCachedMatches is the result page cached per query, sized to the API
// limit clamp so any allowed limit is servable from one entry.
const maxCachedMatches = 20

// Service answers vibe queries: embed the query text, score it against
// the catalog index, cache the ranked page keyed by normalized query.
// The embed call is the guarded external resource, so cache hits consume
// no rate limit budget.
type Service struct {
	embedder embedding.Embedder
	limiter  *ratelimit.Limiter
	cache    *cache.Cache[[]models.VibeMatch]
	logger   *zap.Logger

	mu    sync.RWMutex
	index *Index
}

// NewService wires an embedder, its rate limiter, and a result cache into
// a vibe search service. The index starts empty; install one with SetIndex.
func NewService(embedder embedding.Embedder, limiter *ratelimit.Limiter, resultCache *cache.Cache[[]models.VibeMatch], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		limiter:  limiter,
		cache:    resultCache,
		logger:   logger,
	}
}

// SetIndex installs idx as the serving index. Called at startup and by
// the catalog watcher; in-flight searches finish on the index they
// started with.
func (s *Service) SetIndex(idx *Index) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	if idx != nil {
		s.logger.Info("vibe index installed",
			zap.Int("places", idx.Size()),
			zap.Int("dimension", idx.Dimensions()),
			zap.String("model", idx.Model()))
	}
}

// Index returns the current serving index, or nil before the first load.
func (s *Service) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Ready reports whether a catalog is loaded.
func (s *Service) Ready() bool { return s.Index() != nil }

// CatalogInfo describes the loaded catalog for diagnostics, nil when not
// ready.
func (s *Service) CatalogInfo() *models.CatalogInfo {
	idx := s.Index()
	if idx == nil {
		return nil
	}
	return &models.CatalogInfo{
		Places:    idx.Size(),
		Dimension: idx.Dimensions(),
		Model:     idx.Model(),
	}
}

// CacheStats reports the result cache's entry count and counters.
func (s *Service) CacheStats() models.CacheStats {
	st := s.cache.Stats()
	return models.CacheStats{Entries: s.cache.Len(), Hits: st.Hits, Misses: st.Misses}
}

// LimiterStatus reports the embed limiter's usage.
func (s *Service) LimiterStatus() ratelimit.Status { return s.limiter.Status() }

// Search returns the top limit catalog places matching the query vibe.
// Sequencing: cache, then limiter, then embed and score; the ranked page
// is cached and the embed call recorded only on success. A cached page
// shorter than limit is reused only when it already covers the whole
// catalog; otherwise it counts as a miss and is recomputed.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.VibeMatch, error) {
	idx := s.Index()
	if idx == nil {
		return nil, ErrNotReady
	}
	if limit <= 0 {
		return []models.VibeMatch{}, nil
	}

	if hit, ok := s.cache.Get(query); ok {
		if len(hit) >= limit {
			return hit[:limit], nil
		}
		if len(hit) >= idx.Size() {
			return hit, nil
		}
	}

	if ok, reason := s.limiter.Check(); !ok {
		return nil, &ratelimit.DeniedError{Resource: s.limiter.Name(), Reason: reason}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := idx.Search(vec, maxCachedMatches)
	if err != nil {
		return nil, err
	}

	page := make([]models.VibeMatch, len(matches))
	for i, m := range matches {
		page[i] = toVibeMatch(m)
	}
	s.cache.Set(query, page)
	s.limiter.Record()

	if limit > len(page) {
		limit = len(page)
	}
	return page[:limit], nil
}

func toVibeMatch(m Match) models.VibeMatch {
	p := m.Place
	return models.VibeMatch{
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Address:     p.Address,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Rating:      p.Rating,
		RatingCount: p.RatingCount,
		Category:    p.Category,
		Description: p.Description,
		Score:       m.Score,
	}
}
