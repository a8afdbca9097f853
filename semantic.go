package fakecheck

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// Embedder maps a bitmap into a visual-semantic vector space (CLIP-style).
// The handle is owned by the caller, loaded once, and must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

var errEmptyEmbedding = errors.New("empty embedding")

// SemanticSimilarity returns the cosine similarity of the two embeddings
// remapped from [-1,1] to [0,1].
func SemanticSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errEmptyEmbedding
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}
	na, nb := l2Norm(a), l2Norm(b)
	if na == 0 || nb == 0 {
		return 0, errEmptyEmbedding
	}
	var dot float64
	for i := range a {
		dot += (float64(a[i]) / na) * (float64(b[i]) / nb)
	}
	cos := math.Max(-1, math.Min(1, dot))
	return clamp01((cos + 1) / 2), nil
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// embedding returns the handle's embedding, computing it at most once per
// handle. Path and URL sources are additionally cached in cfg.Cache.
func (cfg *Config) embedding(ctx context.Context, h *ImageHandle) ([]float32, error) {
	if h.embedding != nil {
		return h.embedding, nil
	}

	cacheable := cfg.Cache != nil && (h.Source.Kind == SourcePath || h.Source.Kind == SourceURL)
	var cacheKey string
	if cacheable {
		cacheKey = cfg.Cache.Key("embedding", h.Source.Descriptor())
		var cached []float32
		if cfg.Cache.Get(ctx, cacheKey, &cached) && len(cached) > 0 {
			h.embedding = cached
			return cached, nil
		}
	}

	vec, err := cfg.Embedder.Embed(ctx, h.Bitmap)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", h.Source.Descriptor(), err)
	}
	if len(vec) == 0 {
		return nil, errEmptyEmbedding
	}
	h.embedding = vec
	if cacheable {
		cfg.Cache.Set(ctx, cacheKey, vec)
	}
	return vec, nil
}

// semanticScore embeds both handles and compares them.
func (cfg *Config) semanticScore(ctx context.Context, a, b *ImageHandle) (float64, error) {
	if cfg.Embedder == nil {
		return 0, ErrMethodUnavailable
	}
	ea, err := cfg.embedding(ctx, a)
	if err != nil {
		return 0, err
	}
	eb, err := cfg.embedding(ctx, b)
	if err != nil {
		return 0, err
	}
	return SemanticSimilarity(ea, eb)
}
