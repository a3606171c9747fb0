package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// DefaultDimensions is the vector width of the HashingEmbedder.
const DefaultDimensions = 256

// HashingEmbedder projects index terms into a fixed-width vector with the
// hashing trick. It needs no model and is deterministic, which makes the
// vector path usable offline and in tests.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder creates a HashingEmbedder. dims <= 0 uses DefaultDimensions.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{Dimensions: dims}
}

func (h *HashingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.Dimensions)
	for _, term := range tokenize.Terms(text) {
		f := fnv.New64a()
		f.Write([]byte(term))
		sum := f.Sum64()
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.Dimensions)] += sign
	}
	return normalize(vec)
}

// OllamaConfig configures the remote embedder.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOllamaEmbedder connects to an Ollama embedding model. Replies are
// cleaned of non-finite values before use.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (embedding.Embedder, error) {
	e, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return &finiteEmbedder{inner: e}, nil
}

type finiteEmbedder struct {
	inner embedding.Embedder
}

func (e *finiteEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	vectors, err := e.inner.EmbedStrings(ctx, texts, opts...)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for _, vec := range vectors {
		for i, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				vec[i] = 0
			}
		}
	}
	return vectors, nil
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
