package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/embedding"
	"github.com/henryzhan013/roadtrip-planner/pkg/utils"
)

// maxReviewChars bounds the review block so embedding inputs stay within
// what the models handle well.
const maxReviewChars = 2000

// EmbeddingText renders the text embedded for a place: its name,
// description, review excerpts, and category, one labeled line each.
// Reviews carry most of the vibe language, so they all go in, capped.
func EmbeddingText(p *catalog.Place) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Name: "+p.Name)
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if len(p.Reviews) > 0 {
		parts = append(parts, "Reviews: "+utils.Truncate(strings.Join(p.Reviews, " "), maxReviewChars))
	}
	if p.Category != "" {
		parts = append(parts, "Category: "+strings.ReplaceAll(p.Category, "_", " "))
	}
	return strings.Join(parts, "\n")
}

// Builder embeds fetched places into a catalog.
type Builder struct {
	embedder embedding.Embedder
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuildLogger sets the logger.
func WithBuildLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder wires an embedder into a catalog builder.
func NewBuilder(embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders embedding text for every place, embeds the batch, and
// assembles the catalog. Places with nothing to embed are dropped with a
// warning. The input's fetch ID is carried through for lineage.
func (b *Builder) Build(ctx context.Context, in *FetchOutput, model string) (*catalog.Catalog, error) {
	kept := make([]catalog.Place, 0, len(in.Places))
	texts := make([]string, 0, len(in.Places))
	for _, p := range in.Places {
		text := EmbeddingText(&p)
		if text == "" {
			b.logger.Warn("place has no embeddable text, dropping",
				zap.String("place_id", p.PlaceID))
			continue
		}
		p.EmbeddingText = text
		kept = append(kept, p)
		texts = append(texts, text)
	}
	if len(kept) == 0 {
		return nil, errors.New("no places with embeddable text")
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed places: %w", err)
	}
	if len(vecs) != len(kept) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d places", len(vecs), len(kept))
	}
	for i := range kept {
		kept[i].Embedding = vecs[i]
	}

	cat := &catalog.Catalog{
		FetchID:            in.FetchID,
		Model:              model,
		EmbeddingDimension: len(vecs[0]),
		TotalPlaces:        len(kept),
		Places:             kept,
	}
	b.logger.Info("catalog built",
		zap.String("model", model),
		zap.Int("places", len(kept)),
		zap.Int("dimension", cat.EmbeddingDimension))
	return cat, nil
}
