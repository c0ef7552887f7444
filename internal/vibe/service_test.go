package vibe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/embedding"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
)

// mockCatalog embeds each place's name with the same mock embedder the
// service will use, so a query equal to a name scores 1.0.
func mockCatalog(t *testing.T, emb embedding.Embedder, names ...string) *catalog.Catalog {
	t.Helper()
	cat := &catalog.Catalog{Model: "mock", EmbeddingDimension: emb.Dimensions()}
	for i, name := range names {
		vec, err := emb.Embed(context.Background(), name)
		if err != nil {
			t.Fatal(err)
		}
		cat.Places = append(cat.Places, catalog.Place{
			PlaceID:   string(rune('a' + i)),
			Name:      name,
			Embedding: vec,
		})
	}
	return cat
}

func newTestService(t *testing.T, limiter *ratelimit.Limiter, names ...string) *Service {
	t.Helper()
	emb := embedding.NewMockEmbedder(64)
	if limiter == nil {
		limiter = ratelimit.New("embedding", 100, 1000)
	}
	svc := NewService(emb, limiter, cache.New[[]models.VibeMatch](time.Hour), zap.NewNop())
	svc.SetIndex(NewIndex(mockCatalog(t, emb, names...)))
	return svc
}

func TestService_SearchFindsExactVibe(t *testing.T) {
	svc := newTestService(t, nil, "broken spoke", "continental club", "white horse")

	got, err := svc.Search(context.Background(), "continental club", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("results = %d, want 3", len(got))
	}
	if got[0].Name != "continental club" {
		t.Errorf("top result = %q, want the exact match", got[0].Name)
	}
	if math.Abs(got[0].Score-1.0) > 1e-5 {
		t.Errorf("top score = %v, want 1.0", got[0].Score)
	}
}

func TestService_NotReady(t *testing.T) {
	emb := embedding.NewMockEmbedder(64)
	svc := NewService(emb, ratelimit.New("embedding", 10, 10), cache.New[[]models.VibeMatch](time.Hour), zap.NewNop())

	_, err := svc.Search(context.Background(), "anything", 5)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("error = %v, want ErrNotReady", err)
	}
	if svc.Ready() {
		t.Error("Ready() = true with no index")
	}
}

func TestService_CacheHitsSkipLimiter(t *testing.T) {
	limiter := ratelimit.New("embedding", 1, 10)
	svc := newTestService(t, limiter, "broken spoke", "white horse")

	if _, err := svc.Search(context.Background(), "dancing honky tonk", 2); err != nil {
		t.Fatalf("first search: %v", err)
	}

	// Budget is exhausted, but the same query must serve from cache.
	for i := 0; i < 3; i++ {
		if _, err := svc.Search(context.Background(), "dancing honky tonk", 2); err != nil {
			t.Fatalf("cached search %d: %v", i, err)
		}
	}

	// A new query needs the embedder and is denied.
	_, err := svc.Search(context.Background(), "quiet wine bar", 2)
	var denied *ratelimit.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("error = %v, want *ratelimit.DeniedError", err)
	}
	if denied.Resource != "embedding" {
		t.Errorf("denied resource = %q", denied.Resource)
	}
}

func TestService_DeniedSearchNotRecorded(t *testing.T) {
	limiter := ratelimit.New("embedding", 1, 10)
	svc := newTestService(t, limiter, "broken spoke")

	if _, err := svc.Search(context.Background(), "first", 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		svc.Search(context.Background(), "denied query", 1)
	}
	if st := limiter.Status(); st.MinuteUsed != 1 {
		t.Errorf("MinuteUsed = %d after denied searches, want 1", st.MinuteUsed)
	}
}

func TestService_LimitClamp(t *testing.T) {
	svc := newTestService(t, nil, "a spot", "b spot", "c spot")

	got, err := svc.Search(context.Background(), "some vibe", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("results = %d, want whole catalog", len(got))
	}

	got, err = svc.Search(context.Background(), "some vibe", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("results = %d for limit 0", len(got))
	}
}

func TestService_IndexSwap(t *testing.T) {
	svc := newTestService(t, nil, "old place")
	emb := embedding.NewMockEmbedder(64)

	svc.SetIndex(NewIndex(mockCatalog(t, emb, "new one", "new two")))

	info := svc.CatalogInfo()
	if info == nil || info.Places != 2 {
		t.Fatalf("CatalogInfo = %+v, want 2 places", info)
	}
	got, err := svc.Search(context.Background(), "new two", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Name != "new two" {
		t.Errorf("top result = %q", got[0].Name)
	}
}

func TestService_CacheStats(t *testing.T) {
	svc := newTestService(t, nil, "somewhere")

	svc.Search(context.Background(), "q", 1)
	svc.Search(context.Background(), "q", 1)

	st := svc.CacheStats()
	if st.Entries != 1 {
		t.Errorf("Entries = %d, want 1", st.Entries)
	}
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 hit 1 miss", st)
	}
}
