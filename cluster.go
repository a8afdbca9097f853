package fakecheck

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultDuplicateThreshold is the weighted multi-hash distance at or below
// which two images are reported as duplicates.
const DefaultDuplicateThreshold = 5.0

// hashConcurrency bounds concurrent loading and hashing in batch operations.
const hashConcurrency = 8

// multiHash is the fingerprint set used for near-duplicate detection.
type multiHash struct {
	average    *goimagehash.ImageHash
	perceptual *goimagehash.ImageHash
	difference *goimagehash.ImageHash
	wavelet    *goimagehash.ImageHash
}

func computeMultiHash(img image.Image) (multiHash, error) {
	var (
		mh  multiHash
		err error
	)
	if mh.average, err = goimagehash.AverageHash(img); err != nil {
		return multiHash{}, fmt.Errorf("ahash: %w", err)
	}
	if mh.perceptual, err = goimagehash.PerceptionHash(img); err != nil {
		return multiHash{}, fmt.Errorf("phash: %w", err)
	}
	if mh.difference, err = goimagehash.DifferenceHash(img); err != nil {
		return multiHash{}, fmt.Errorf("dhash: %w", err)
	}
	mh.wavelet = waveletHash(img)
	return mh, nil
}

// distance is (ahash + 2·phash + dhash + whash) / 5 in Hamming bits.
// The perceptual hash counts double because it is the most reliable of the four.
func (m multiHash) distance(o multiHash) float64 {
	a, _ := m.average.Distance(o.average)
	p, _ := m.perceptual.Distance(o.perceptual)
	d, _ := m.difference.Distance(o.difference)
	w, _ := m.wavelet.Distance(o.wavelet)
	return float64(a+2*p+d+w) / 5
}

const (
	waveletScale = 64 // grayscale working size before the Haar decomposition
	waveletSide  = 8  // 8×8 = 64 bits
)

// waveletHash is an 8×8 Haar wavelet hash: the image is reduced to a
// 64×64 grayscale square, Haar low-pass steps are applied until an 8×8
// approximation remains, and each coefficient is compared with their median.
func waveletHash(img image.Image) *goimagehash.ImageHash {
	g := image.NewGray(image.Rect(0, 0, waveletScale, waveletScale))
	draw.CatmullRom.Scale(g, g.Bounds(), img, img.Bounds(), draw.Src, nil)

	side := waveletScale
	ll := make([]float64, side*side)
	for i, v := range g.Pix[:side*side] {
		ll[i] = float64(v) / 255
	}
	for side > waveletSide {
		ll = haarLowPass(ll, side)
		side /= 2
	}

	sorted := slices.Clone(ll)
	slices.Sort(sorted)
	median := (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2

	var bits uint64
	for i, v := range ll {
		if v > median {
			bits |= 1 << uint(len(ll)-1-i)
		}
	}
	return goimagehash.NewImageHash(bits, goimagehash.WHash)
}

// haarLowPass performs one 2-D Haar analysis step and keeps the LL band.
func haarLowPass(src []float64, side int) []float64 {
	half := side / 2
	out := make([]float64, half*half)
	for y := 0; y < half; y++ {
		for x := 0; x < half; x++ {
			i := 2*y*side + 2*x
			out[y*half+x] = (src[i] + src[i+1] + src[i+side] + src[i+side+1]) / 2
		}
	}
	return out
}

// hashedImage pairs a source label with its fingerprints.
type hashedImage struct {
	id   string
	hash multiHash
}

// hashSources loads and fingerprints sources concurrently. Images that fail to
// load or hash are logged and left out; the rest keep their input order.
func (cfg *Config) hashSources(ctx context.Context, sources []ImageSource) []hashedImage {
	slots := make([]*hashedImage, len(sources))

	var g errgroup.Group
	g.SetLimit(hashConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			h, err := cfg.LoadImage(ctx, src)
			if err != nil {
				slog.Warn("fakecheck: skipping image", "source", src.Descriptor(), "error", err.Error())
				return nil
			}
			mh, err := computeMultiHash(h.Bitmap)
			if err != nil {
				slog.Warn("fakecheck: skipping image", "source", src.Descriptor(), "error", err.Error())
				return nil
			}
			slots[i] = &hashedImage{id: src.label(), hash: mh}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]hashedImage, 0, len(sources))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// groupDuplicates is a single greedy pass in input order. Each image not yet
// grouped opens a group and claims every later ungrouped image within
// threshold of it. Membership is judged against the opening image only, so
// grouping is not transitive and depends on input order.
func groupDuplicates(images []hashedImage, threshold float64) []DuplicateGroup {
	processed := make([]bool, len(images))
	var groups []DuplicateGroup

	for i := range images {
		if processed[i] {
			continue
		}
		processed[i] = true
		ids := []string{images[i].id}

		for j := range images {
			if processed[j] {
				continue
			}
			if images[i].hash.distance(images[j].hash) <= threshold {
				ids = append(ids, images[j].id)
				processed[j] = true
			}
		}

		if len(ids) > 1 {
			groups = append(groups, DuplicateGroup{IDs: ids})
		}
	}
	return groups
}

// FindDuplicates groups near-identical images among sources. Images that
// cannot be loaded are skipped. A negative threshold selects
// DefaultDuplicateThreshold.
func (cfg *Config) FindDuplicates(ctx context.Context, sources []ImageSource, threshold float64) []DuplicateGroup {
	cfg.defaults()
	if threshold < 0 {
		threshold = DefaultDuplicateThreshold
	}
	return groupDuplicates(cfg.hashSources(ctx, sources), threshold)
}

// FindDuplicates groups near-identical images with the engine's loader settings.
func (e *Engine) FindDuplicates(ctx context.Context, sources []ImageSource, threshold float64) []DuplicateGroup {
	return e.cfg.FindDuplicates(ctx, sources, threshold)
}
