package fakecheck

import "math"

// PriceStage maps listed/official ratios strictly below Below to Score.
type PriceStage struct {
	Below float64 `koanf:"below" yaml:"below"`
	Score float64 `koanf:"score" yaml:"score"`
}

// DefaultPriceStages are checked in order; the first matching stage wins and
// a ratio above every bound scores 0.
var DefaultPriceStages = []PriceStage{
	{Below: 0.10, Score: 1.0},
	{Below: 0.20, Score: 0.8},
	{Below: 0.30, Score: 0.6},
	{Below: 0.50, Score: 0.4},
}

// PriceSuspicion scores how implausibly cheap listed is against official.
// A missing, zero, negative or NaN official price gives no basis for suspicion.
func PriceSuspicion(listed, official float64, stages []PriceStage) float64 {
	if stages == nil {
		stages = DefaultPriceStages
	}
	if official <= 0 || math.IsNaN(official) || math.IsNaN(listed) || math.IsInf(official, 0) {
		return 0
	}
	ratio := listed / official
	for _, s := range stages {
		if ratio < s.Below {
			return clamp01(s.Score)
		}
	}
	return 0
}

// clamp01 pins v into [0,1]; NaN becomes 0.
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
