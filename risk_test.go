package fakecheck

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
)

func TestOverallRiskAndClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		c          ComponentScores
		want       float64
		wantFake   bool
		wantConfid Confidence
	}{
		{
			name:       "strong signals",
			c:          ComponentScores{KeywordMatch: 0.9, ImageSimilarity: 0.9, PriceSuspicion: 1.0, SuspiciousKeywords: 1.0},
			want:       0.94,
			wantFake:   true,
			wantConfid: ConfidenceHigh,
		},
		{
			name:       "moderate signals",
			c:          ComponentScores{KeywordMatch: 0.5, ImageSimilarity: 0.5, PriceSuspicion: 0.4, SuspiciousKeywords: 0.3},
			want:       0.445,
			wantFake:   false,
			wantConfid: ConfidenceLow,
		},
		{
			name:       "nothing",
			c:          ComponentScores{},
			want:       0,
			wantConfid: ConfidenceLow,
		},
		{
			name:       "everything maxed",
			c:          ComponentScores{KeywordMatch: 1, ImageSimilarity: 1, PriceSuspicion: 1, SuspiciousKeywords: 1},
			want:       1,
			wantFake:   true,
			wantConfid: ConfidenceHigh,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := OverallRisk(tc.c)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("OverallRisk = %v, want %v", got, tc.want)
			}
			fake, conf := Classify(got)
			if fake != tc.wantFake || conf != tc.wantConfid {
				t.Errorf("Classify(%v) = (%v, %s), want (%v, %s)", got, fake, conf, tc.wantFake, tc.wantConfid)
			}
		})
	}
}

func TestClassify_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		overall  float64
		wantFake bool
		want     Confidence
	}{
		{0.6999, false, ConfidenceLow},
		{0.70, true, ConfidenceMedium},
		{0.8499, true, ConfidenceMedium},
		{0.85, true, ConfidenceHigh},
	}
	for _, tc := range tests {
		fake, conf := Classify(tc.overall)
		if fake != tc.wantFake || conf != tc.want {
			t.Errorf("Classify(%v) = (%v, %s), want (%v, %s)", tc.overall, fake, conf, tc.wantFake, tc.want)
		}
	}
}

func marmontFixture() (ListingCandidate, []ReferenceProduct) {
	img := blocksImage(256, 256, 11)
	refs := []ReferenceProduct{
		{Brand: "Prada", Name: "Re-Edition 2005", Description: "nylon bag", OfficialPrice: 1500},
		{
			Brand:         "Gucci",
			Name:          "GG Marmont",
			Description:   "matelasse shoulder bag",
			OfficialPrice: 2000,
			Images:        []ImageSource{SourceFromImage("ref", img)},
		},
	}
	listing := ListingCandidate{
		Title:      "Gucci GG Marmont matelasse shoulder bag replica 1:1 AAA mirror",
		Price:      50,
		SourceSite: "DHgate",
		Images:     []ImageSource{SourceFromImage("listing", img)},
	}
	return listing, refs
}

func TestDetect_Counterfeit(t *testing.T) {
	t.Parallel()

	var events atomic.Int32
	e, err := New(Config{
		Embedder:    &fakeEmbedder{},
		OnDetection: func(DetectionEvent) { events.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}

	listing, refs := marmontFixture()
	res := e.Detect(context.Background(), listing, refs)

	if !reflect.DeepEqual(res.DetectedBrands, []string{"Gucci"}) {
		t.Errorf("DetectedBrands = %v, want [Gucci]", res.DetectedBrands)
	}
	if res.MatchedReference != &refs[1] {
		t.Errorf("MatchedReference = %v, want the Marmont reference", res.MatchedReference)
	}
	if res.Components.PriceSuspicion != 1 {
		t.Errorf("PriceSuspicion = %v, want 1", res.Components.PriceSuspicion)
	}
	if res.Components.SuspiciousKeywords != 1 {
		t.Errorf("SuspiciousKeywords = %v, want 1", res.Components.SuspiciousKeywords)
	}
	if res.Components.ImageSimilarity <= 0.7 {
		t.Errorf("ImageSimilarity = %v, want > 0.7 for identical photos", res.Components.ImageSimilarity)
	}
	if res.Components.KeywordMatch <= 0.6 {
		t.Errorf("KeywordMatch = %v, want > 0.6", res.Components.KeywordMatch)
	}
	if !res.IsCounterfeit || res.Confidence == ConfidenceLow {
		t.Errorf("verdict = (%v, %s), want counterfeit", res.IsCounterfeit, res.Confidence)
	}
	if res.Similarity == nil || !res.Similarity.Loaded {
		t.Error("Similarity breakdown missing")
	}

	wantMethods := []DetectionMethod{MethodImageSimilarity, MethodPriceAnalysis, MethodKeywordMatch}
	if !reflect.DeepEqual(res.Methods, wantMethods) {
		t.Errorf("Methods = %v, want %v", res.Methods, wantMethods)
	}

	wantPrefixes := []string{
		"Detected brands: Gucci",
		"Suspicious price: $50.00 vs official price $2000.00",
		"High image similarity: ",
		"Strong match with authentic product: GG Marmont",
		"Found on DHgate (high-risk marketplace)",
	}
	if len(res.Reasons) != len(wantPrefixes) {
		t.Fatalf("Reasons = %q, want %d entries", res.Reasons, len(wantPrefixes))
	}
	for i, p := range wantPrefixes {
		if !strings.HasPrefix(res.Reasons[i], p) {
			t.Errorf("Reasons[%d] = %q, want prefix %q", i, res.Reasons[i], p)
		}
	}

	if got := events.Load(); got != 1 {
		t.Errorf("OnDetection called %d times, want 1", got)
	}
}

func TestDetect_NoBrandIsZeroRisk(t *testing.T) {
	t.Parallel()

	e, err := New(Config{Embedder: &fakeEmbedder{}})
	if err != nil {
		t.Fatal(err)
	}
	_, refs := marmontFixture()
	listing := ListingCandidate{
		Title:      "Quilted shoulder bag replica AAA 1:1 mirror",
		Price:      1,
		SourceSite: "AliExpress",
		Images:     refs[1].Images,
	}

	res := e.Detect(context.Background(), listing, refs)
	if res.IsCounterfeit || res.OverallRisk != 0 || res.Confidence != ConfidenceLow {
		t.Errorf("verdict = (%v, %v, %s), want zero risk", res.IsCounterfeit, res.OverallRisk, res.Confidence)
	}
	if res.Components != (ComponentScores{}) {
		t.Errorf("Components = %+v, want zero", res.Components)
	}
	if res.DetectedBrands == nil || res.Reasons == nil || res.Methods == nil {
		t.Error("empty result lists must be non-nil")
	}
	if len(res.Reasons) != 0 || res.MatchedReference != nil {
		t.Errorf("unexpected reasons %q or match %v", res.Reasons, res.MatchedReference)
	}
}

func TestDetect_PartialSignals(t *testing.T) {
	t.Parallel()

	e, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, refs := marmontFixture()

	tests := []struct {
		name        string
		listing     ListingCandidate
		wantMethods []DetectionMethod
		wantMatch   bool
	}{
		{
			name:        "brand without reference",
			listing:     ListingCandidate{Title: "Chanel classic flap replica", Price: 10},
			wantMethods: []DetectionMethod{},
		},
		{
			name:        "no price scraped",
			listing:     ListingCandidate{Title: "Gucci GG Marmont matelasse shoulder bag"},
			wantMethods: []DetectionMethod{},
			wantMatch:   true,
		},
		{
			name: "unloadable listing photo",
			listing: ListingCandidate{
				Title:  "Gucci GG Marmont matelasse shoulder bag",
				Images: []ImageSource{SourceFromBytes("broken", []byte("xx"))},
			},
			wantMethods: []DetectionMethod{MethodImageSimilarity},
			wantMatch:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := e.Detect(context.Background(), tc.listing, refs)
			if !reflect.DeepEqual(res.Methods, tc.wantMethods) {
				t.Errorf("Methods = %v, want %v", res.Methods, tc.wantMethods)
			}
			if (res.MatchedReference != nil) != tc.wantMatch {
				t.Errorf("MatchedReference = %v, want match %v", res.MatchedReference, tc.wantMatch)
			}
			if res.Components.PriceSuspicion != 0 || res.Components.ImageSimilarity != 0 {
				t.Errorf("Components = %+v, want no price or image contribution", res.Components)
			}
			if res.IsCounterfeit {
				t.Error("partial signals must not reach the counterfeit threshold")
			}
			if len(res.Reasons) == 0 || !strings.HasPrefix(res.Reasons[0], "Detected brands: ") {
				t.Errorf("Reasons = %q, want brands first", res.Reasons)
			}
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()

	e, err := New(Config{Embedder: &fakeEmbedder{}})
	if err != nil {
		t.Fatal(err)
	}
	listing, refs := marmontFixture()

	first := e.Detect(context.Background(), listing, refs)
	second := e.Detect(context.Background(), listing, refs)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Detect is not deterministic:\n%+v\n%+v", first, second)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("JSON differs:\n%s\n%s", a, b)
	}
}

func TestDetect_ExtraRiskySite(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ExtraRiskySites: []string{"bazaar.example"}})
	if err != nil {
		t.Fatal(err)
	}
	res := e.Detect(context.Background(), ListingCandidate{
		Title: "Prada nylon bag",
		URL:   "https://shop.bazaar.example/item/9",
	}, nil)
	if !slices.Contains(res.Reasons, "Found on bazaar.example (high-risk marketplace)") {
		t.Errorf("Reasons = %q, want risky-site reason", res.Reasons)
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v        float64
		currency string
		want     string
	}{
		{12.5, "", "$12.50"},
		{12.5, "usd", "$12.50"},
		{99, "EUR", "99.00 EUR"},
	}
	for _, tc := range tests {
		if got := formatPrice(tc.v, tc.currency); got != tc.want {
			t.Errorf("formatPrice(%v, %q) = %q, want %q", tc.v, tc.currency, got, tc.want)
		}
	}
}

func TestDetect_PhotoMetadataCreditsBrand(t *testing.T) {
	t.Parallel()

	e, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	listing, refs := marmontFixture()
	photo := withEXIFCopyright(encodeJPEG(blocksImage(256, 256, 11)), "Gucci press office")
	listing.Images = []ImageSource{SourceFromBytes("listing", photo)}

	res := e.Detect(context.Background(), listing, refs)
	if res.Similarity == nil || !res.Similarity.Loaded {
		t.Fatal("listing photo was not compared")
	}
	want := "Listing photo metadata credits Gucci"
	if n := len(res.Reasons); n == 0 || res.Reasons[n-1] != want {
		t.Errorf("Reasons = %q, want last %q", res.Reasons, want)
	}

	listing.Images = []ImageSource{SourceFromBytes("listing", encodeJPEG(blocksImage(256, 256, 11)))}
	res = e.Detect(context.Background(), listing, refs)
	if slices.Contains(res.Reasons, want) {
		t.Errorf("Reasons = %q, want no metadata reason for an uncredited photo", res.Reasons)
	}
}

func TestDetect_ReferenceBrandAlias(t *testing.T) {
	t.Parallel()

	e, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	refs := []ReferenceProduct{{Brand: "Hermes", Name: "Birkin 30", Description: "togo leather bag", OfficialPrice: 10000}}
	res := e.Detect(context.Background(), ListingCandidate{Title: "Hermes Birkin 30 bag", Price: 300}, refs)

	if !reflect.DeepEqual(res.DetectedBrands, []string{"Hermès"}) {
		t.Errorf("DetectedBrands = %v, want [Hermès]", res.DetectedBrands)
	}
	if res.MatchedReference != &refs[0] {
		t.Fatalf("MatchedReference = %v, want the alias-branded reference", res.MatchedReference)
	}
	if res.Components.PriceSuspicion != 1 {
		t.Errorf("PriceSuspicion = %v, want 1", res.Components.PriceSuspicion)
	}
	if res.Components.KeywordMatch <= 0 {
		t.Errorf("KeywordMatch = %v, want > 0", res.Components.KeywordMatch)
	}
}
