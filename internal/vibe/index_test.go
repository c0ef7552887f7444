package vibe

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Model:              "test-model",
		EmbeddingDimension: 3,
		Places: []catalog.Place{
			{PlaceID: "p0", Name: "Broken Spoke", Embedding: []float32{1, 0, 0}},
			{PlaceID: "p1", Name: "Continental Club", Embedding: []float32{0, 1, 0}},
			{PlaceID: "p2", Name: "White Horse", Embedding: []float32{0.6, 0.8, 0}},
		},
	}
}

func TestIndex_ExactMatchScoresOne(t *testing.T) {
	idx := NewIndex(testCatalog())

	// Query identical to entry p1's embedding.
	matches, err := idx.Search([]float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Place.PlaceID != "p1" {
		t.Errorf("top match = %s, want p1", matches[0].Place.PlaceID)
	}
	if math.Abs(matches[0].Score-1.0) > 1e-9 {
		t.Errorf("top score = %v, want 1.0", matches[0].Score)
	}
}

func TestIndex_ScoresDescend(t *testing.T) {
	idx := NewIndex(testCatalog())

	matches, err := idx.Search([]float32{1, 0.1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, matches[i].Score, matches[i-1].Score)
		}
	}
}

func TestIndex_Deterministic(t *testing.T) {
	idx := NewIndex(testCatalog())
	query := []float32{0.3, 0.7, 0.1}

	first, err := idx.Search(query, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := idx.Search(query, 3)
		if err != nil {
			t.Fatal(err)
		}
		for j := range first {
			if again[j].Place.PlaceID != first[j].Place.PlaceID || again[j].Score != first[j].Score {
				t.Fatalf("run %d differs at %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestIndex_TiesKeepCatalogOrder(t *testing.T) {
	cat := &catalog.Catalog{
		EmbeddingDimension: 2,
		Places: []catalog.Place{
			{PlaceID: "first", Embedding: []float32{1, 0}},
			{PlaceID: "second", Embedding: []float32{1, 0}},
			{PlaceID: "third", Embedding: []float32{0, 1}},
		},
	}
	idx := NewIndex(cat)

	matches, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Place.PlaceID != "first" || matches[1].Place.PlaceID != "second" {
		t.Errorf("tied entries reordered: %s, %s", matches[0].Place.PlaceID, matches[1].Place.PlaceID)
	}
}

func TestIndex_KLargerThanCatalog(t *testing.T) {
	idx := NewIndex(testCatalog())

	matches, err := idx.Search([]float32{1, 0, 0}, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Errorf("got %d matches, want whole catalog (3)", len(matches))
	}
}

func TestIndex_NonPositiveK(t *testing.T) {
	idx := NewIndex(testCatalog())
	for _, k := range []int{0, -1} {
		matches, err := idx.Search([]float32{1, 0, 0}, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 0 {
			t.Errorf("k=%d returned %d matches", k, len(matches))
		}
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := NewIndex(testCatalog())

	_, err := idx.Search([]float32{1, 0}, 3)
	if err == nil {
		t.Fatal("Search accepted a mismatched query")
	}
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("error type = %T, want *DimensionError", err)
	}
	if dimErr.Got != 2 || dimErr.Want != 3 {
		t.Errorf("DimensionError = %+v", dimErr)
	}
}

func TestIndex_EmptyCatalog(t *testing.T) {
	idx := NewIndex(&catalog.Catalog{EmbeddingDimension: 3})

	matches, err := idx.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search on empty catalog: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from empty catalog", len(matches))
	}
}

func TestIndex_ConcurrentSearches(t *testing.T) {
	idx := NewIndex(testCatalog())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := idx.Search([]float32{0.5, 0.5, 0}, 3); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
