package fakecheck

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Brand is a canonical brand name with its known spellings and abbreviations.
type Brand struct {
	Name     string   `koanf:"name" yaml:"name"`
	Variants []string `koanf:"variants" yaml:"variants"`
}

// DefaultBrands are the luxury houses most often counterfeited on marketplaces.
var DefaultBrands = []Brand{
	{Name: "Louis Vuitton", Variants: []string{"LV", "L.V", "Louisvuitton", "Louis V"}},
	{Name: "Gucci", Variants: []string{"Guccy", "Guuci", "G ucci"}},
	{Name: "Hermès", Variants: []string{"Hermes", "Hermés", "Hermess"}},
	{Name: "Chanel"},
	{Name: "Prada"},
	{Name: "Dior"},
	{Name: "Fendi"},
	{Name: "Burberry"},
	{Name: "Versace"},
	{Name: "Rolex"},
	{Name: "Cartier"},
	{Name: "Balenciaga"},
	{Name: "Givenchy"},
	{Name: "Valentino"},
	{Name: "Saint Laurent", Variants: []string{"YSL", "Yves Saint Laurent"}},
	{Name: "Bottega Veneta"},
	{Name: "Celine"},
	{Name: "Loewe"},
	{Name: "Bvlgari", Variants: []string{"Bulgari"}},
}

// DetectBrands returns the canonical names of brands whose name or any variant
// occurs in text. Matching is case-insensitive substring search with no token
// boundaries, so "LV" also fires inside longer words. The result is sorted.
func DetectBrands(text string, brands []Brand) []string {
	if brands == nil {
		brands = DefaultBrands
	}
	return detectBrands(text, brands)
}

func detectBrands(text string, brands []Brand) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	folded := fold(text)

	var found []string
	for _, b := range brands {
		if brandMentioned(folded, b) {
			found = append(found, b.Name)
		}
	}
	slices.Sort(found)
	return slices.Compact(found)
}

func brandMentioned(folded string, b Brand) bool {
	if b.Name != "" && strings.Contains(folded, fold(b.Name)) {
		return true
	}
	for _, v := range b.Variants {
		if v != "" && strings.Contains(folded, fold(v)) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding for caseless comparison.
// A Caser keeps state, so a fresh one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
