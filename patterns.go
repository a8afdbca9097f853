package fakecheck

import (
	"math"
	"strings"
)

// SuspiciousPhrases are marketing phrases sellers use to signal a replica.
var SuspiciousPhrases = []string{
	"replica", "copy", "inspired", "style", "luxury style",
	"designer style", "high quality", "aaa", "1:1", "mirror",
	"super copy", "top quality",
}

// suspiciousHitWeight is the score contributed by each matched phrase.
const suspiciousHitWeight = 0.3

// CountSuspiciousPhrases returns how many distinct phrases from lexicon occur
// in text (case-insensitive substring). Overlapping phrases count separately:
// "designer style" hits both "style" and "designer style".
func CountSuspiciousPhrases(text string, lexicon []string) int {
	if lexicon == nil {
		lexicon = SuspiciousPhrases
	}
	folded := fold(text)
	count := 0
	for _, p := range lexicon {
		if p != "" && strings.Contains(folded, fold(p)) {
			count++
		}
	}
	return count
}

// SuspiciousKeywordScore maps the phrase count to min(count×0.3, 1).
func SuspiciousKeywordScore(text string, lexicon []string) float64 {
	n := CountSuspiciousPhrases(text, lexicon)
	return math.Min(float64(n)*suspiciousHitWeight, 1.0)
}
