package fakecheck

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// IndexMatch is one ImageIndex search hit.
type IndexMatch struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`    // max(0, 1 - distance/64)
	Distance float64 `json:"distance"` // weighted multi-hash distance
}

// ImageIndex keeps multi-hash fingerprints of a corpus for similarity search
// and duplicate reporting. It is safe for concurrent use.
type ImageIndex struct {
	cfg *Config

	mu     sync.RWMutex
	images []hashedImage
}

// NewImageIndex creates an empty index that loads images with cfg.
func NewImageIndex(cfg *Config) *ImageIndex {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	return &ImageIndex{cfg: cfg}
}

// NewImageIndex creates an empty index sharing the engine's loader settings.
func (e *Engine) NewImageIndex() *ImageIndex {
	return &ImageIndex{cfg: e.cfg}
}

// Add fingerprints src and stores it under its ID (or descriptor).
func (ix *ImageIndex) Add(ctx context.Context, src ImageSource) error {
	h, err := ix.cfg.LoadImage(ctx, src)
	if err != nil {
		return err
	}
	mh, err := computeMultiHash(h.Bitmap)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", src.Descriptor(), err)
	}

	ix.mu.Lock()
	ix.images = append(ix.images, hashedImage{id: src.label(), hash: mh})
	ix.mu.Unlock()
	return nil
}

// AddAll fingerprints sources concurrently and returns how many were added.
// Images that fail to load are skipped.
func (ix *ImageIndex) AddAll(ctx context.Context, sources []ImageSource) int {
	hashed := ix.cfg.hashSources(ctx, sources)

	ix.mu.Lock()
	ix.images = append(ix.images, hashed...)
	ix.mu.Unlock()
	return len(hashed)
}

// Len returns the number of indexed images.
func (ix *ImageIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.images)
}

// Clear empties the index.
func (ix *ImageIndex) Clear() {
	ix.mu.Lock()
	ix.images = nil
	ix.mu.Unlock()
}

// Search returns up to topK indexed images within threshold of query, best
// first; equal scores keep insertion order. topK <= 0 returns every hit.
func (ix *ImageIndex) Search(ctx context.Context, query ImageSource, topK int, threshold float64) ([]IndexMatch, error) {
	h, err := ix.cfg.LoadImage(ctx, query)
	if err != nil {
		return nil, err
	}
	qh, err := computeMultiHash(h.Bitmap)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", query.Descriptor(), err)
	}

	ix.mu.RLock()
	var hits []IndexMatch
	for _, img := range ix.images {
		d := qh.distance(img.hash)
		if d <= threshold {
			hits = append(hits, IndexMatch{
				ID:       img.id,
				Score:    math.Max(0, 1-d/hashBits),
				Distance: d,
			})
		}
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Duplicates groups the indexed images with the same greedy pass as FindDuplicates.
func (ix *ImageIndex) Duplicates(threshold float64) []DuplicateGroup {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return groupDuplicates(ix.images, threshold)
}
