package fakecheck

import (
	"slices"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TextSimilarity is the character-level sequence-matching ratio
// 2·M/(len(a)+len(b)) between the lower-cased inputs, computed with the
// difflib SequenceMatcher (including its popular-element junk heuristic).
func TextSimilarity(a, b string) float64 {
	ra, rb := runeStrings(lower(a)), runeStrings(lower(b))
	if len(ra)+len(rb) == 0 {
		return 1
	}
	return clamp01(difflib.NewMatcher(ra, rb).Ratio())
}

// MatchReference scores listingText against every reference whose brand is in
// brands and returns the best score with its reference. Reference brands are
// resolved through DefaultBrands, so a catalogue entry labelled "Hermes" or
// "YSL" is eligible for the canonical "Hermès" or "Saint Laurent". Only a
// strictly higher score replaces the current best, so the first reference
// wins ties and a reference scoring 0 is never matched. With no eligible
// reference it returns (0, nil).
func MatchReference(listingText string, refs []ReferenceProduct, brands []string) (float64, *ReferenceProduct) {
	return matchReference(listingText, refs, brands, DefaultBrands)
}

func matchReference(listingText string, refs []ReferenceProduct, brands []string, table []Brand) (float64, *ReferenceProduct) {
	best := 0.0
	var match *ReferenceProduct
	for i := range refs {
		if !referenceEligible(refs[i].Brand, brands, table) {
			continue
		}
		score := TextSimilarity(listingText, refs[i].Name+" "+refs[i].Description)
		if score > best {
			best = score
			match = &refs[i]
		}
	}
	return best, match
}

// referenceEligible reports whether the reference brand label names one of
// the detected canonical brands, either verbatim or via the brand table.
func referenceEligible(label string, detected []string, table []Brand) bool {
	if slices.Contains(detected, label) {
		return true
	}
	for _, b := range detectBrands(label, table) {
		if slices.Contains(detected, b) {
			return true
		}
	}
	return false
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// runeStrings splits s into one element per rune for character-level matching.
func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
