package fakecheck

import (
	"context"
	"log/slog"
)

// Overall risk weights. They are fixed design constants and sum to 1.
const (
	RiskWeightKeywordMatch       = 0.30
	RiskWeightImageSimilarity    = 0.30
	RiskWeightPriceSuspicion     = 0.25
	RiskWeightSuspiciousKeywords = 0.15
)

// Verdict thresholds on the overall risk score (inclusive).
const (
	CounterfeitThreshold    = 0.70
	HighConfidenceThreshold = 0.85
)

// Reason thresholds on component scores (exclusive).
const (
	reasonPriceThreshold = 0.5
	reasonImageThreshold = 0.7
	reasonTextThreshold  = 0.6
)

// OverallRisk combines the four component scores with the fixed risk weights,
// clamped to [0,1].
func OverallRisk(c ComponentScores) float64 {
	return clamp01(RiskWeightKeywordMatch*c.KeywordMatch +
		RiskWeightImageSimilarity*c.ImageSimilarity +
		RiskWeightPriceSuspicion*c.PriceSuspicion +
		RiskWeightSuspiciousKeywords*c.SuspiciousKeywords)
}

// Classify derives the verdict and confidence tier from the overall risk.
func Classify(overall float64) (bool, Confidence) {
	counterfeit := overall >= CounterfeitThreshold
	switch {
	case overall >= HighConfidenceThreshold:
		return counterfeit, ConfidenceHigh
	case counterfeit:
		return counterfeit, ConfidenceMedium
	default:
		return counterfeit, ConfidenceLow
	}
}

// Detect scores listing against the reference catalogue. It never fails: a
// listing that names no known brand is zero-risk, and every failing signal
// (unloadable image, embedding error) contributes 0.
func (e *Engine) Detect(ctx context.Context, listing ListingCandidate, refs []ReferenceProduct) DetectionResult {
	res := e.detect(ctx, listing, refs)

	if e.cfg.OnDetection != nil {
		e.cfg.OnDetection(DetectionEvent{
			Title:       listing.Title,
			SourceSite:  listing.SourceSite,
			OverallRisk: res.OverallRisk,
			Confidence:  res.Confidence,
			Counterfeit: res.IsCounterfeit,
		})
	}
	return res
}

func (e *Engine) detect(ctx context.Context, listing ListingCandidate, refs []ReferenceProduct) DetectionResult {
	text := listing.text()

	brands := detectBrands(text, e.cfg.Brands)
	if len(brands) == 0 {
		slog.Debug("fakecheck: no brand detected", "title", listing.Title)
		return zeroResult()
	}

	res := DetectionResult{
		DetectedBrands: brands,
		Reasons:        []string{},
		Methods:        []DetectionMethod{},
	}

	keyword, match := matchReference(text, refs, brands, e.cfg.Brands)
	res.Components.KeywordMatch = keyword
	res.MatchedReference = match

	var listingImage *ImageHandle
	if match != nil && len(listing.Images) > 0 && len(match.Images) > 0 {
		score, ha, _ := e.fusion.compareSources(ctx, listing.Images[0], match.Images[0], e.fusion.weights)
		res.Components.ImageSimilarity = score.Fused
		res.Similarity = &score
		res.Methods = append(res.Methods, MethodImageSimilarity)
		listingImage = ha
	}

	if match != nil && match.OfficialPrice > 0 && listing.Price > 0 {
		res.Components.PriceSuspicion = PriceSuspicion(listing.Price, match.OfficialPrice, e.cfg.PriceStages)
		res.Methods = append(res.Methods, MethodPriceAnalysis)
	}

	res.Components.SuspiciousKeywords = SuspiciousKeywordScore(text, e.cfg.SuspiciousPhrases)

	res.OverallRisk = OverallRisk(res.Components)
	res.IsCounterfeit, res.Confidence = Classify(res.OverallRisk)
	if res.IsCounterfeit {
		res.Methods = append(res.Methods, MethodKeywordMatch)
	}

	res.Reasons = e.reasons(res, listing, listingImage)

	slog.Debug("fakecheck: detection",
		"title", listing.Title, "brands", brands,
		"keyword", res.Components.KeywordMatch, "image", res.Components.ImageSimilarity,
		"price", res.Components.PriceSuspicion, "suspicious", res.Components.SuspiciousKeywords,
		"overall", res.OverallRisk, "counterfeit", res.IsCounterfeit)
	return res
}

// zeroResult is the verdict for listings without any brand signal.
func zeroResult() DetectionResult {
	return DetectionResult{
		Confidence:     ConfidenceLow,
		DetectedBrands: []string{},
		Reasons:        []string{},
		Methods:        []DetectionMethod{},
	}
}
