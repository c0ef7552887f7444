package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "text-embedding-3-small"
	defaultCacheSize  = 1024
	embedBatchMaxSize = 100
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. Results
// are memoized in an LRU keyed by text digest, so repeated queries (the
// common case for vibe search) cost one API call, and transient failures
// are retried with backoff.
type HTTPEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	cache      *lru.Cache[string, []float32]
	retry      RetryConfig
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPEmbedder returns an embedder for an OpenAI-compatible API.
// Empty baseURL, model, and cacheSize fall back to the OpenAI defaults.
func NewHTTPEmbedder(baseURL, apiKey, model string, dimensions, cacheSize int) (*HTTPEmbedder, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &HTTPEmbedder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		retry:      defaultRetryConfig(),
	}, nil
}

// Embed returns the embedding for text, from cache when available.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	vecs, err := retryWithBackoff(ctx, e.retry, func() ([][]float32, error) {
		return e.request(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, vecs[0])
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, splitting the work into API-sized
// chunks. Cached texts are not re-requested.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(cacheKey(text)); ok {
			out[i] = vec
		} else {
			missing = append(missing, i)
		}
	}

	for start := 0; start < len(missing); start += embedBatchMaxSize {
		end := start + embedBatchMaxSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]
		inputs := make([]string, len(chunk))
		for j, idx := range chunk {
			inputs[j] = texts[idx]
		}

		vecs, err := retryWithBackoff(ctx, e.retry, func() ([][]float32, error) {
			return e.request(ctx, inputs)
		})
		if err != nil {
			return nil, err
		}
		for j, idx := range chunk {
			out[idx] = vecs[j]
			e.cache.Add(cacheKey(texts[idx]), vecs[j])
		}
	}
	return out, nil
}

// request performs one embeddings call and returns vectors in input order.
func (e *HTTPEmbedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Input: inputs, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(b))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), len(inputs))
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding has dimension %d, want %d", len(d.Embedding), e.dimensions)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension, or 0 when the
// provider decides.
func (e *HTTPEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op; the HTTP client holds no resources worth freeing.
func (e *HTTPEmbedder) Close() error { return nil }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
