package fakecheck

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Weights are the relative contributions of the three similarity techniques.
type Weights struct {
	Semantic  float64 `json:"semantic" koanf:"semantic"`
	Hash      float64 `json:"hash" koanf:"hash"`
	Geometric float64 `json:"geometric" koanf:"geometric"`
}

// DefaultWeights favour semantic similarity, then perceptual hashing.
var DefaultWeights = Weights{Semantic: 0.5, Hash: 0.3, Geometric: 0.2}

func (w Weights) get(m Method) float64 {
	switch m {
	case MethodSemantic:
		return w.Semantic
	case MethodHash:
		return w.Hash
	case MethodGeometric:
		return w.Geometric
	default:
		return 0
	}
}

func (w *Weights) set(m Method, v float64) {
	switch m {
	case MethodSemantic:
		w.Semantic = v
	case MethodHash:
		w.Hash = v
	case MethodGeometric:
		w.Geometric = v
	}
}

// Sum is the total of the three weights.
func (w Weights) Sum() float64 {
	return w.Semantic + w.Hash + w.Geometric
}

// Normalize redistributes w over the methods available in caps so the applied
// weights sum to 1; unavailable methods get 0. It fails on negative or NaN
// weights and when the available methods carry no weight at all.
func (w Weights) Normalize(caps Capabilities) (Weights, error) {
	if caps.Empty() {
		return Weights{}, ErrNoMethods
	}
	total := 0.0
	for _, m := range allMethods {
		v := w.get(m)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, m, v)
		}
		if caps.Has(m) {
			total += v
		}
	}
	if total <= 0 {
		return Weights{}, fmt.Errorf("%w: available methods %v carry no weight", ErrInvalidWeights, caps.Methods())
	}
	var out Weights
	for _, m := range caps.Methods() {
		out.set(m, w.get(m)/total)
	}
	return out, nil
}

// SimilarityScore is the per-method breakdown of one image comparison.
type SimilarityScore struct {
	Semantic  float64 `json:"semantic"`
	Hash      float64 `json:"hash"`
	Geometric float64 `json:"geometric"`
	Fused     float64 `json:"fused"`
	Weights   Weights `json:"weights"` // applied weights, summing to 1 over available methods
	Loaded    bool    `json:"loaded"`  // false when either image failed to load
}

// fusion combines the similarity techniques under weights fixed at construction.
type fusion struct {
	cfg     *Config
	caps    Capabilities
	weights Weights
}

func newFusion(cfg *Config, caps Capabilities, w Weights) (*fusion, error) {
	applied, err := w.Normalize(caps)
	if err != nil {
		return nil, err
	}
	return &fusion{cfg: cfg, caps: caps, weights: applied}, nil
}

// compareSources loads both sources once and compares them. A load failure on
// either side yields an all-zero score; the loaded handles are returned for
// callers that inspect them further.
func (f *fusion) compareSources(ctx context.Context, a, b ImageSource, w Weights) (SimilarityScore, *ImageHandle, *ImageHandle) {
	ha, hb, ok := f.cfg.loadPair(ctx, a, b)
	if !ok {
		return SimilarityScore{Weights: w}, nil, nil
	}
	return f.compareHandles(ctx, ha, hb, w), ha, hb
}

// compareHandles runs every available technique. A technique that fails
// during the call contributes 0 and is logged; it never aborts the comparison.
func (f *fusion) compareHandles(ctx context.Context, a, b *ImageHandle, w Weights) SimilarityScore {
	s := SimilarityScore{Weights: w, Loaded: true}

	if f.caps.Semantic {
		v, err := f.cfg.semanticScore(ctx, a, b)
		if err != nil {
			slog.Warn("fakecheck: semantic similarity failed", "a", a.Source.Descriptor(), "b", b.Source.Descriptor(), "error", err.Error())
		}
		s.Semantic = clamp01(v)
	}
	if f.caps.Hash {
		v, err := hashScore(a, b)
		if err != nil {
			slog.Warn("fakecheck: perceptual hash failed", "a", a.Source.Descriptor(), "b", b.Source.Descriptor(), "error", err.Error())
		}
		s.Hash = clamp01(v)
	}
	if f.caps.Geometric {
		s.Geometric = clamp01(geometricScore(a, b, f.cfg.MaxKeypoints))
	}

	s.Fused = clamp01(w.Semantic*s.Semantic + w.Hash*s.Hash + w.Geometric*s.Geometric)

	slog.Debug("fakecheck: similarity",
		"a", a.Source.Descriptor(), "b", b.Source.Descriptor(),
		"semantic", s.Semantic, "hash", s.Hash, "geometric", s.Geometric, "fused", s.Fused)
	return s
}
