package vibe

import (
	"fmt"
	"sort"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
)

// DimensionError reports a query embedding whose length does not match
// the index. It means the embedder and the catalog disagree about the
// model, so the search is refused outright rather than scored partially.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("query embedding dimension %d, index expects %d", e.Got, e.Want)
}

// Match pairs a catalog place with its similarity to the query.
type Match struct {
	Place *catalog.Place
	Score float64
}

// Index holds catalog places for scoring. It is immutable once built:
// concurrent searches need no locking, and catalog reloads swap in a new
// Index instead of mutating this one.
type Index struct {
	dimensions int
	model      string
	places     []catalog.Place
}

// NewIndex builds an index over cat's places. Load has already verified
// that all embeddings share the header dimension.
func NewIndex(cat *catalog.Catalog) *Index {
	return &Index{
		dimensions: cat.EmbeddingDimension,
		model:      cat.Model,
		places:     cat.Places,
	}
}

// Dimensions returns the embedding dimension the index expects.
func (idx *Index) Dimensions() int { return idx.dimensions }

// Model returns the embedding model the catalog was built with.
func (idx *Index) Model() string { return idx.model }

// Size returns the number of places in the index.
func (idx *Index) Size() int { return len(idx.places) }

// Search scores every place against query and returns the top k by
// descending similarity, ties broken by catalog order. An empty index
// yields an empty result, and k beyond the catalog just returns the
// whole catalog ranked.
func (idx *Index) Search(query []float32, k int) ([]Match, error) {
	if len(idx.places) == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(query) != idx.dimensions {
		return nil, &DimensionError{Got: len(query), Want: idx.dimensions}
	}

	matches := make([]Match, len(idx.places))
	for i := range idx.places {
		p := &idx.places[i]
		matches[i] = Match{Place: p, Score: CosineSimilarity(query, p.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}
