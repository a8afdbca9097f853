package fakecheck

import (
	"image"
	"math"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/image/draw"
)

// DefaultMaxKeypoints caps the keypoints kept per image.
const DefaultMaxKeypoints = 500

const (
	featureMaxSide  = 512 // images are downscaled so the longest side fits
	fastThreshold   = 20  // FAST intensity margin
	fastArc         = 9   // contiguous circle pixels required (FAST-9)
	patchRadius     = 15  // orientation and descriptor patch radius
	featureEdge     = patchRadius + 3
	smoothRadius    = 2 // 5×5 box filter before sampling descriptor pairs
	descriptorPairs = 256
	angleBins       = 30
	patternSeed     = 0x0f4b
)

// fastCircle is the Bresenham circle of radius 3 used by FAST, clockwise from 12 o'clock.
var fastCircle = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type keypoint struct {
	X, Y  int
	Score int
	Angle float64
}

// descriptor is a 256-bit binary BRIEF descriptor.
type descriptor [4]uint64

// featureSet holds oriented keypoints and their descriptors, index-aligned.
type featureSet struct {
	keypoints   []keypoint
	descriptors []descriptor
}

// keypointFeatures returns the handle's keypoints, detecting them at most once.
func (h *ImageHandle) keypointFeatures(maxKeypoints int) *featureSet {
	if h.features == nil {
		h.features = detectFeatures(h.Bitmap, maxKeypoints)
	}
	return h.features
}

// detectFeatures runs FAST-9 detection, keeps the maxKeypoints strongest
// corners, orients them by intensity centroid and computes steered BRIEF
// descriptors.
func detectFeatures(img image.Image, maxKeypoints int) *featureSet {
	gray := grayscale(img, featureMaxSide)
	kps := detectFAST(gray, maxKeypoints)
	fs := &featureSet{}
	if len(kps) == 0 {
		return fs
	}

	integral := newIntegral(gray)
	pattern := steeredPattern()
	for _, kp := range kps {
		kp.Angle = centroidAngle(gray, kp.X, kp.Y)
		fs.keypoints = append(fs.keypoints, kp)
		fs.descriptors = append(fs.descriptors, describe(integral, kp, pattern))
	}
	return fs
}

// grayscale converts img to 8-bit luma, downscaling so neither side exceeds maxSide.
func grayscale(img image.Image, maxSide int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if longest := max(w, h); longest > maxSide {
		scale := float64(maxSide) / float64(longest)
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// detectFAST finds FAST-9 corners with 3×3 non-maximum suppression and returns
// at most limit of them, strongest first, ties in raster order.
func detectFAST(g *image.Gray, limit int) []keypoint {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w <= 2*featureEdge || h <= 2*featureEdge {
		return nil
	}

	scores := make([]int, w*h)
	for y := featureEdge; y < h-featureEdge; y++ {
		for x := featureEdge; x < w-featureEdge; x++ {
			scores[y*w+x] = fastScore(g, x, y)
		}
	}

	var kps []keypoint
	for y := featureEdge; y < h-featureEdge; y++ {
		for x := featureEdge; x < w-featureEdge; x++ {
			s := scores[y*w+x]
			if s > 0 && isLocalMax(scores, w, x, y, s) {
				kps = append(kps, keypoint{X: x, Y: y, Score: s})
			}
		}
	}

	sort.SliceStable(kps, func(i, j int) bool { return kps[i].Score > kps[j].Score })
	if len(kps) > limit {
		kps = kps[:limit]
	}
	return kps
}

// isLocalMax keeps exactly one pixel of a plateau: it must beat the neighbours
// that come earlier in raster order and tie-or-beat the later ones.
func isLocalMax(scores []int, w, x, y, s int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			earlier := dy < 0 || (dy == 0 && dx < 0)
			if n > s || (earlier && n == s) {
				return false
			}
		}
	}
	return true
}

// fastScore returns 0 unless (x,y) is a FAST-9 corner; otherwise the summed
// intensity excess of the circle pixels beyond the threshold.
func fastScore(g *image.Gray, x, y int) int {
	p := int(g.Pix[y*g.Stride+x])
	var brighter, darker [16]bool
	var excessB, excessD int
	for i, off := range fastCircle {
		v := int(g.Pix[(y+off.Y)*g.Stride+x+off.X])
		switch {
		case v > p+fastThreshold:
			brighter[i] = true
			excessB += v - p - fastThreshold
		case v < p-fastThreshold:
			darker[i] = true
			excessD += p - v - fastThreshold
		}
	}
	switch {
	case hasArc(&brighter):
		return excessB
	case hasArc(&darker):
		return excessD
	default:
		return 0
	}
}

// hasArc reports whether the circle holds fastArc contiguous set flags, wrapping around.
func hasArc(flags *[16]bool) bool {
	run := 0
	for i := 0; i < 16+fastArc-1; i++ {
		if flags[i%16] {
			run++
			if run >= fastArc {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// centroidAngle is the orientation of the intensity centroid within the patch disk.
func centroidAngle(g *image.Gray, cx, cy int) float64 {
	var m01, m10 float64
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > patchRadius*patchRadius {
				continue
			}
			v := float64(g.Pix[(cy+dy)*g.Stride+cx+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

// integral is a summed-area table used for constant-time box smoothing.
type integral struct {
	w, h int
	sums []int64 // (w+1)×(h+1)
}

func newIntegral(g *image.Gray) *integral {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	it := &integral{w: w, h: h, sums: make([]int64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(g.Pix[y*g.Stride+x])
			it.sums[(y+1)*(w+1)+x+1] = it.sums[y*(w+1)+x+1] + row
		}
	}
	return it
}

// smoothed is the mean intensity of the box of radius smoothRadius around (x,y),
// clipped to the image.
func (it *integral) smoothed(x, y int) int64 {
	x0, y0 := max(0, x-smoothRadius), max(0, y-smoothRadius)
	x1, y1 := min(it.w, x+smoothRadius+1), min(it.h, y+smoothRadius+1)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	stride := it.w + 1
	sum := it.sums[y1*stride+x1] - it.sums[y0*stride+x1] - it.sums[y1*stride+x0] + it.sums[y0*stride+x0]
	return sum / int64((x1-x0)*(y1-y0))
}

// samplePair is one BRIEF intensity comparison, as offsets from the keypoint.
type samplePair struct {
	a, b image.Point
}

var (
	patternOnce sync.Once
	patterns    [angleBins][descriptorPairs]samplePair
)

// steeredPattern returns the BRIEF pattern pre-rotated into angleBins orientations.
// The base pattern is drawn once from a fixed seed, so descriptors are
// reproducible across runs and processes.
func steeredPattern() *[angleBins][descriptorPairs]samplePair {
	patternOnce.Do(func() {
		rng := rand.New(rand.NewSource(patternSeed)) //nolint:gosec // deterministic sampling pattern, not security sensitive
		var base [descriptorPairs][2][2]float64
		for i := range base {
			base[i][0] = gaussianInDisk(rng)
			base[i][1] = gaussianInDisk(rng)
		}
		for bin := 0; bin < angleBins; bin++ {
			theta := 2 * math.Pi * float64(bin) / angleBins
			sin, cos := math.Sincos(theta)
			for i, pair := range base {
				patterns[bin][i] = samplePair{
					a: rotate(pair[0], sin, cos),
					b: rotate(pair[1], sin, cos),
				}
			}
		}
	})
	return &patterns
}

// gaussianInDisk samples an isotropic Gaussian offset (σ = patch/5) inside the patch disk.
func gaussianInDisk(rng *rand.Rand) [2]float64 {
	const sigma = (2*patchRadius + 1) / 5.0
	for {
		x, y := rng.NormFloat64()*sigma, rng.NormFloat64()*sigma
		if x*x+y*y <= patchRadius*patchRadius {
			return [2]float64{x, y}
		}
	}
}

func rotate(p [2]float64, sin, cos float64) image.Point {
	return image.Point{
		X: int(math.Round(p[0]*cos - p[1]*sin)),
		Y: int(math.Round(p[0]*sin + p[1]*cos)),
	}
}

// describe computes the steered BRIEF descriptor of kp.
func describe(it *integral, kp keypoint, pattern *[angleBins][descriptorPairs]samplePair) descriptor {
	angle := kp.Angle
	if angle < 0 {
		angle += 2 * math.Pi
	}
	bin := int(math.Round(angle/(2*math.Pi)*angleBins)) % angleBins

	var d descriptor
	for i, p := range pattern[bin] {
		if it.smoothed(kp.X+p.a.X, kp.Y+p.a.Y) < it.smoothed(kp.X+p.b.X, kp.Y+p.b.Y) {
			d[i/64] |= 1 << uint(i%64)
		}
	}
	return d
}
