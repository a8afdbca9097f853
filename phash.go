package fakecheck

import (
	"fmt"
	"image"
	"math"

	"github.com/corona10/goimagehash"
)

// hashBits is the length of every 8×8 perceptual hash used here.
const hashBits = 64

// PerceptualHashSimilarity compares the 64-bit pHash of both images:
// max(0, 1 - hamming/64).
func PerceptualHashSimilarity(a, b image.Image) (float64, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, fmt.Errorf("phash: %w", err)
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, fmt.Errorf("phash: %w", err)
	}
	return hashSimilarity(ha, hb)
}

func hashSimilarity(a, b *goimagehash.ImageHash) (float64, error) {
	d, err := a.Distance(b)
	if err != nil {
		return 0, fmt.Errorf("phash distance: %w", err)
	}
	return math.Max(0, 1-float64(d)/hashBits), nil
}

// perceptualHash returns the handle's pHash, computing it at most once.
func (h *ImageHandle) perceptualHash() (*goimagehash.ImageHash, error) {
	if h.phash != nil {
		return h.phash, nil
	}
	ph, err := goimagehash.PerceptionHash(h.Bitmap)
	if err != nil {
		return nil, fmt.Errorf("phash %s: %w", h.Source.Descriptor(), err)
	}
	h.phash = ph
	return ph, nil
}

func hashScore(a, b *ImageHandle) (float64, error) {
	ha, err := a.perceptualHash()
	if err != nil {
		return 0, err
	}
	hb, err := b.perceptualHash()
	if err != nil {
		return 0, err
	}
	return hashSimilarity(ha, hb)
}
