// Package embedding turns text into fixed-length vectors, with local
// ONNX, OpenAI-compatible HTTP, and deterministic mock providers.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
