package fakecheck

import (
	"context"
	"fmt"
	"log/slog"
)

// Engine scores listings and compares images. It is immutable after New and
// safe for concurrent use; the injected Embedder must be as well.
type Engine struct {
	cfg    *Config
	fusion *fusion
}

// New resolves the available similarity techniques once and fixes the fusion
// weights. It fails when no technique is available or the weights are unusable,
// since such a deployment cannot score anything.
func New(cfg Config) (*Engine, error) {
	cfg.defaults()

	caps := ProbeCapabilities(&cfg)
	for _, m := range allMethods {
		if err, ok := caps.Unavailable[m]; ok {
			slog.Info("fakecheck: similarity method unavailable", "method", string(m), "reason", err.Error())
		}
	}

	f, err := newFusion(&cfg, caps, cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("fakecheck: configure similarity fusion: %w", err)
	}

	slog.Debug("fakecheck: engine ready",
		"methods", caps.Methods(),
		"semantic", f.weights.Semantic, "hash", f.weights.Hash, "geometric", f.weights.Geometric)

	return &Engine{cfg: &cfg, fusion: f}, nil
}

// Capabilities reports the techniques resolved at construction.
func (e *Engine) Capabilities() Capabilities {
	return e.fusion.caps
}

// Weights returns the applied fusion weights.
func (e *Engine) Weights() Weights {
	return e.fusion.weights
}

// CompareImages loads both images and fuses the available similarity
// techniques under the engine weights. It never fails: an image that cannot
// be loaded yields a zero score with Loaded=false.
func (e *Engine) CompareImages(ctx context.Context, a, b ImageSource) SimilarityScore {
	s, _, _ := e.fusion.compareSources(ctx, a, b, e.fusion.weights)
	return s
}

// CompareImagesWith is CompareImages with per-call weights, redistributed over
// the engine's available techniques. Unusable weights fall back to the engine
// weights with a warning.
func (e *Engine) CompareImagesWith(ctx context.Context, a, b ImageSource, w Weights) SimilarityScore {
	applied, err := w.Normalize(e.fusion.caps)
	if err != nil {
		slog.Warn("fakecheck: ignoring per-call weights", "error", err.Error())
		applied = e.fusion.weights
	}
	s, _, _ := e.fusion.compareSources(ctx, a, b, applied)
	return s
}

// LoadImage exposes the engine's loader configuration.
func (e *Engine) LoadImage(ctx context.Context, src ImageSource) (*ImageHandle, error) {
	return e.cfg.LoadImage(ctx, src)
}
