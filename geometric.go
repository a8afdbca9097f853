package fakecheck

import (
	"image"
	"math"
	"math/bits"
	"sort"
)

// Geometric score shape: many confident correspondences matter more than
// their average quality.
const (
	geometricCountWeight    = 0.6
	geometricDistanceWeight = 0.4
	geometricDistanceScale  = 100.0
)

type featureMatch struct {
	query, train int
	distance     int
}

// GeometricSimilarity detects up to maxKeypoints oriented keypoints per image,
// matches their binary descriptors and scores the better half of the matches.
// It returns 0 when either image yields no descriptors.
func GeometricSimilarity(a, b image.Image, maxKeypoints int) float64 {
	if maxKeypoints <= 0 {
		maxKeypoints = DefaultMaxKeypoints
	}
	return geometricFromFeatures(detectFeatures(a, maxKeypoints), detectFeatures(b, maxKeypoints))
}

func geometricScore(a, b *ImageHandle, maxKeypoints int) float64 {
	return geometricFromFeatures(a.keypointFeatures(maxKeypoints), b.keypointFeatures(maxKeypoints))
}

func geometricFromFeatures(fa, fb *featureSet) float64 {
	if len(fa.descriptors) == 0 || len(fb.descriptors) == 0 {
		return 0
	}

	matches := crossCheckMatch(fa.descriptors, fb.descriptors)
	if len(matches) == 0 {
		return 0
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })
	good := matches[:max(1, len(matches)/2)]

	total := 0
	for _, m := range good {
		total += m.distance
	}
	avg := float64(total) / float64(len(good))

	countScore := float64(len(good)) / float64(max(len(fa.keypoints), len(fb.keypoints)))
	distanceScore := math.Max(0, 1-avg/geometricDistanceScale)
	return clamp01(geometricCountWeight*countScore + geometricDistanceWeight*distanceScore)
}

// crossCheckMatch is a brute-force Hamming matcher that keeps only mutual
// nearest neighbours. Ties resolve to the lowest index on both sides.
func crossCheckMatch(qs, ts []descriptor) []featureMatch {
	forward := nearest(qs, ts)
	backward := nearest(ts, qs)

	var out []featureMatch
	for q, t := range forward {
		if backward[t.index].index == q {
			out = append(out, featureMatch{query: q, train: t.index, distance: t.distance})
		}
	}
	return out
}

type neighbour struct {
	index, distance int
}

// nearest returns, for every descriptor in from, its closest descriptor in to.
func nearest(from, to []descriptor) []neighbour {
	out := make([]neighbour, len(from))
	for i, d := range from {
		best := neighbour{index: -1, distance: math.MaxInt}
		for j, e := range to {
			if dist := hamming(d, e); dist < best.distance {
				best = neighbour{index: j, distance: dist}
			}
		}
		out[i] = best
	}
	return out
}

func hamming(a, b descriptor) int {
	return bits.OnesCount64(a[0]^b[0]) + bits.OnesCount64(a[1]^b[1]) +
		bits.OnesCount64(a[2]^b[2]) + bits.OnesCount64(a[3]^b[3])
}
