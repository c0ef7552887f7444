package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
)

type fakeSearcher struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
	delay  time.Duration
}

func (f *fakeSearcher) SearchText(ctx context.Context, query string, maxResults int) ([]models.PlaceSummary, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls++
	f.limits = append(f.limits, maxResults)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return placeList(maxResults), nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func placeList(n int) []models.PlaceSummary {
	out := make([]models.PlaceSummary, n)
	for i := range out {
		out[i] = models.PlaceSummary{PlaceID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Place %d", i)}
	}
	return out
}

func newService(searcher Searcher, perMinute, perDay int) *PlacesService {
	limiter := ratelimit.New("google", perMinute, perDay)
	return NewPlacesService(searcher, limiter, cache.New[[]models.PlaceSummary](time.Minute))
}

func TestSearch_CacheBeforeLimiter(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, 2, 100)
	ctx := context.Background()

	if _, err := svc.Search(ctx, "bbq austin", 5); err != nil {
		t.Fatalf("first search failed: %v", err)
	}
	if _, err := svc.Search(ctx, "tacos san antonio", 5); err != nil {
		t.Fatalf("second search failed: %v", err)
	}

	// Repeats of either query are served from cache; no budget spent.
	for i := 0; i < 3; i++ {
		if _, err := svc.Search(ctx, "bbq austin", 5); err != nil {
			t.Fatalf("cached search failed: %v", err)
		}
	}
	if searcher.callCount() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", searcher.callCount())
	}

	// A third distinct query exceeds the per-minute budget.
	_, err := svc.Search(ctx, "museums houston", 5)
	var denied *ratelimit.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Resource != "google" {
		t.Errorf("expected resource google, got %q", denied.Resource)
	}
	if !strings.Contains(denied.Reason, "minute") {
		t.Errorf("expected minute-window reason, got %q", denied.Reason)
	}
	if searcher.callCount() != 2 {
		t.Errorf("denied search must not reach upstream, got %d calls", searcher.callCount())
	}
	if status := svc.LimiterStatus(); status.MinuteUsed != 2 {
		t.Errorf("denied search must not be recorded, got %d", status.MinuteUsed)
	}
}

func TestSearch_NormalizedQueriesShareEntry(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, 10, 100)
	ctx := context.Background()

	first, err := svc.Search(ctx, "Austin BBQ", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	second, err := svc.Search(ctx, "austin bbq ", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if searcher.callCount() != 1 {
		t.Errorf("expected variants to share one upstream call, got %d", searcher.callCount())
	}
	if len(first) != len(second) || first[0].PlaceID != second[0].PlaceID {
		t.Errorf("expected identical results for variants")
	}
	stats := svc.CacheStats()
	if stats.Entries != 1 {
		t.Errorf("expected 1 cache entry, got %d", stats.Entries)
	}
}

func TestSearch_ShortCachedPayloadRefetched(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, 10, 100)
	ctx := context.Background()

	// Seed the cache with a 3-result payload, as the plan path does.
	if _, err := svc.Search(ctx, "bbq", 3); err != nil {
		t.Fatalf("seed search failed: %v", err)
	}

	// Asking for more than is stored refetches at the larger size.
	results, err := svc.Search(ctx, "bbq", 10)
	if err != nil {
		t.Fatalf("refetch search failed: %v", err)
	}
	if len(results) != 10 {
		t.Errorf("expected 10 results after refetch, got %d", len(results))
	}
	if searcher.callCount() != 2 {
		t.Fatalf("expected refetch for larger limit, got %d calls", searcher.callCount())
	}
	if searcher.limits[1] != 10 {
		t.Errorf("expected refetch with maxResults 10, got %d", searcher.limits[1])
	}

	// The longer payload overwrote the shorter one; smaller limits now
	// serve from cache.
	if _, err := svc.Search(ctx, "bbq", 5); err != nil {
		t.Fatalf("cached search failed: %v", err)
	}
	if searcher.callCount() != 2 {
		t.Errorf("expected no further upstream calls, got %d", searcher.callCount())
	}
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, 10, 100)
	ctx := context.Background()

	if _, err := svc.Search(ctx, "bbq", 10); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	results, err := svc.Search(ctx, "bbq", 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 results, got %d", len(results))
	}
	if searcher.callCount() != 1 {
		t.Errorf("smaller limit must serve from cache, got %d calls", searcher.callCount())
	}
}

func TestSearch_UpstreamFailureNotCachedNotRecorded(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("boom")}
	svc := newService(searcher, 10, 100)
	ctx := context.Background()

	if _, err := svc.Search(ctx, "bbq", 5); err == nil {
		t.Fatal("expected upstream error")
	}
	if status := svc.LimiterStatus(); status.MinuteUsed != 0 {
		t.Errorf("failed fetch must not be recorded, got %d", status.MinuteUsed)
	}
	if stats := svc.CacheStats(); stats.Entries != 0 {
		t.Errorf("failed fetch must not be cached, got %d entries", stats.Entries)
	}

	// The error cleared, the same query fetches again.
	searcher.err = nil
	if _, err := svc.Search(ctx, "bbq", 5); err != nil {
		t.Fatalf("retry search failed: %v", err)
	}
	if searcher.callCount() != 2 {
		t.Errorf("expected 2 upstream attempts, got %d", searcher.callCount())
	}
}

func TestSearch_NonPositiveLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, 10, 100)

	for _, limit := range []int{0, -1} {
		results, err := svc.Search(context.Background(), "bbq", limit)
		if err != nil {
			t.Fatalf("Search(limit=%d) failed: %v", limit, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(limit=%d) expected no results, got %d", limit, len(results))
		}
	}
	if searcher.callCount() != 0 {
		t.Errorf("non-positive limits must not reach upstream, got %d calls", searcher.callCount())
	}
}

func TestSearch_ConcurrentMissesCollapse(t *testing.T) {
	searcher := &fakeSearcher{delay: 20 * time.Millisecond}
	svc := newService(searcher, 10, 100)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	counts := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := svc.Search(context.Background(), "bbq austin", 5)
			errs[i] = err
			counts[i] = len(results)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if counts[i] != 5 {
			t.Errorf("worker %d got %d results, want 5", i, counts[i])
		}
	}
	if searcher.callCount() != 1 {
		t.Errorf("expected concurrent misses to collapse into 1 call, got %d", searcher.callCount())
	}
	if status := svc.LimiterStatus(); status.MinuteUsed != 1 {
		t.Errorf("expected 1 recorded call, got %d", status.MinuteUsed)
	}
}
