package fakecheck

import (
	"fmt"
	"slices"
	"strings"
)

// reasons explains a verdict. The order is fixed: brands, price, image, text,
// source site, photo metadata. Each applicable condition adds one line.
func (e *Engine) reasons(res DetectionResult, listing ListingCandidate, listingImage *ImageHandle) []string {
	out := []string{}

	if len(res.DetectedBrands) > 0 {
		out = append(out, "Detected brands: "+strings.Join(res.DetectedBrands, ", "))
	}

	if res.Components.PriceSuspicion > reasonPriceThreshold {
		if ref := res.MatchedReference; ref != nil {
			out = append(out, fmt.Sprintf("Suspicious price: %s vs official price %s",
				formatPrice(listing.Price, listing.Currency), formatPrice(ref.OfficialPrice, ref.Currency)))
		} else {
			out = append(out, "Abnormally low price for a luxury brand")
		}
	}

	if res.Components.ImageSimilarity > reasonImageThreshold {
		out = append(out, fmt.Sprintf("High image similarity: %.1f%%", res.Components.ImageSimilarity*100))
	}

	if res.Components.KeywordMatch > reasonTextThreshold {
		if ref := res.MatchedReference; ref != nil && ref.Name != "" {
			out = append(out, "Strong match with authentic product: "+ref.Name)
		} else {
			out = append(out, "Strong match with authentic product")
		}
	}

	if site, ok := IsRiskySite(listing, e.cfg.ExtraRiskySites); ok {
		out = append(out, fmt.Sprintf("Found on %s (high-risk marketplace)", site))
	}

	if listingImage != nil {
		var credited []string
		for _, b := range CreditedBrands(listingImage.Metadata, e.cfg.Brands) {
			if slices.Contains(res.DetectedBrands, b) {
				credited = append(credited, b)
			}
		}
		if len(credited) > 0 {
			out = append(out, "Listing photo metadata credits "+strings.Join(credited, ", "))
		}
	}

	return out
}

// formatPrice renders dollars as "$12.50" and other currencies as "12.50 EUR".
func formatPrice(v float64, currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" || c == "USD" || c == "$" {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, c)
}
