package fakecheck

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DetectBatch scores every listing independently, at most cfg.Concurrency at a
// time, and returns the results in input order. A listing whose scoring
// panics is reported through OnPanic and gets a zero-risk result.
func (e *Engine) DetectBatch(ctx context.Context, listings []ListingCandidate, refs []ReferenceProduct) []DetectionResult {
	results := make([]DetectionResult, len(listings))
	if len(listings) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i := range listings {
		g.Go(func() error {
			results[i] = e.detectOne(ctx, listings[i], refs)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// detectOne recovers from panics to protect the worker pool.
func (e *Engine) detectOne(ctx context.Context, listing ListingCandidate, refs []ReferenceProduct) (res DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			if e.cfg.OnPanic != nil {
				e.cfg.OnPanic("detectBatch", r)
			}
			res = zeroResult()
		}
	}()
	return e.Detect(ctx, listing, refs)
}

// RankedImage is a candidate image with its similarity to a reference.
type RankedImage struct {
	Source ImageSource     `json:"source"`
	Score  SimilarityScore `json:"score"`
}

// RankImages compares every candidate with reference and sorts them by fused
// score, best first. Equal scores keep their input order. The reference is
// loaded once; if it cannot be loaded every candidate scores 0.
func (e *Engine) RankImages(ctx context.Context, reference ImageSource, candidates []ImageSource) []RankedImage {
	ranked := make([]RankedImage, len(candidates))
	ref, err := e.cfg.LoadImage(ctx, reference)
	if err != nil {
		slog.Debug("fakecheck: reference image load failed", "error", err.Error())
	}
	for i, c := range candidates {
		ranked[i] = RankedImage{Source: c, Score: SimilarityScore{Weights: e.fusion.weights}}
		if err != nil {
			continue
		}
		h, cerr := e.cfg.LoadImage(ctx, c)
		if cerr != nil {
			slog.Debug("fakecheck: candidate image load failed", "error", cerr.Error())
			continue
		}
		ranked[i].Score = e.fusion.compareHandles(ctx, ref, h, e.fusion.weights)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Fused > ranked[j].Score.Fused
	})
	return ranked
}
