package embedding

import (
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures an embedder implementation.
type Options struct {
	// Provider forces a provider: "onnx", "openai", or "mock". Empty
	// means auto-select.
	Provider   string
	ModelPath  string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

// New builds an embedder from opts. Auto-selection prefers a local ONNX
// model when one is configured, then an OpenAI-compatible API when a key
// is present, and otherwise falls back to deterministic mock vectors,
// which are only good for tests and offline development.
func New(opts Options, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Provider {
	case "onnx":
		return NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
	case "openai":
		return NewHTTPEmbedder(opts.BaseURL, opts.APIKey, opts.Model, opts.Dimensions, opts.CacheSize)
	case "mock":
		return NewMockEmbedder(opts.Dimensions), nil
	case "":
		if opts.ModelPath != "" {
			e, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
			if err == nil {
				logger.Info("using ONNX embedder", zap.String("model_path", opts.ModelPath))
				return e, nil
			}
			logger.Warn("ONNX embedder unavailable", zap.Error(err))
		}
		if opts.APIKey != "" {
			logger.Info("using OpenAI-compatible embedder", zap.String("model", opts.Model))
			return NewHTTPEmbedder(opts.BaseURL, opts.APIKey, opts.Model, opts.Dimensions, opts.CacheSize)
		}
		logger.Warn("no embedding provider configured, using deterministic mock vectors")
		return NewMockEmbedder(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}
