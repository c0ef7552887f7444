//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/henryzhan013/roadtrip-planner/pkg/utils"
)

// ONNXEmbedder runs a local sentence-transformer exported to ONNX. It
// needs CGO and the onnxruntime shared library at runtime. The session
// and its tensors are reused across calls under a mutex; inference is
// one text at a time.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	cache      *lru.Cache[string, []float32]

	mu         sync.Mutex
	inputIDs   *ort.Tensor[int64]
	attention  *ort.Tensor[int64]
	tokenTypes *ort.Tensor[int64]
	output     *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model at modelPath. The model must take
// input_ids/attention_mask/token_type_ids of shape [1, maxTokens] and
// produce a pooled "output" of shape [1, dimensions].
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	if dimensions <= 0 {
		dimensions = 384
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	shape := ort.NewShape(1, int64(maxTokens))
	var created []ort.ArbitraryTensor
	destroyCreated := func() {
		for _, t := range created {
			_ = t.Destroy()
		}
	}

	newInput := func(name string) (*ort.Tensor[int64], error) {
		t, err := ort.NewTensor(shape, make([]int64, maxTokens))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		created = append(created, t)
		return t, nil
	}

	inputIDs, err := newInput("input_ids")
	if err != nil {
		destroyCreated()
		return nil, err
	}
	attention, err := newInput("attention_mask")
	if err != nil {
		destroyCreated()
		return nil, err
	}
	tokenTypes, err := newInput("token_type_ids")
	if err != nil {
		destroyCreated()
		return nil, err
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		destroyCreated()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	created = append(created, output)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDs, attention, tokenTypes},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		destroyCreated()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	return &ONNXEmbedder{
		session:    session,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		tokenizer:  &WordTokenizer{},
		cache:      cache,
		inputIDs:   inputIDs,
		attention:  attention,
		tokenTypes: tokenTypes,
		output:     output,
	}, nil
}

// Embed returns the L2-normalized embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attention.GetData(), mask)
	copy(e.tokenTypes.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.output.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)

	e.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attention, e.tokenTypes} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	e.inputIDs, e.attention, e.tokenTypes = nil, nil, nil
	return err
}
