package fakecheck

// ReferenceProduct is an authentic catalogue item listings are compared against.
// The engine never mutates it.
type ReferenceProduct struct {
	Brand         string        `json:"brand" yaml:"brand"` // canonical brand name, see DefaultBrands
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	OfficialPrice float64       `json:"official_price" yaml:"official_price"`
	Currency      string        `json:"currency,omitempty" yaml:"currency"`
	Images        []ImageSource `json:"images,omitempty" yaml:"images"`
	Keywords      []string      `json:"keywords,omitempty" yaml:"keywords"`
}

// ListingCandidate is a single scraped marketplace item.
type ListingCandidate struct {
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Price       float64       `json:"price" yaml:"price"` // <= 0 means no price was scraped
	Currency    string        `json:"currency,omitempty" yaml:"currency"`
	Images      []ImageSource `json:"images,omitempty" yaml:"images"`
	SourceSite  string        `json:"source_site" yaml:"source_site"` // e.g. "AliExpress"
	URL         string        `json:"url,omitempty" yaml:"url"`       // listing page URL
	Seller      string        `json:"seller,omitempty" yaml:"seller"`
}

// text is the title and description joined by a single space.
func (l ListingCandidate) text() string {
	return l.Title + " " + l.Description
}

// Confidence is the tier attached to a verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// DetectionMethod names a signal that contributed to a verdict.
type DetectionMethod string

const (
	MethodImageSimilarity DetectionMethod = "IMAGE_SIMILARITY"
	MethodPriceAnalysis   DetectionMethod = "PRICE_ANALYSIS"
	MethodKeywordMatch    DetectionMethod = "KEYWORD_MATCH"
)

// ComponentScores are the four inputs of the overall risk score.
type ComponentScores struct {
	KeywordMatch       float64 `json:"keyword_match"`
	ImageSimilarity    float64 `json:"image_similarity"`
	PriceSuspicion     float64 `json:"price_suspicion"`
	SuspiciousKeywords float64 `json:"suspicious_keywords"`
}

// DetectionResult is the explained verdict for one listing.
type DetectionResult struct {
	OverallRisk      float64           `json:"overall_risk_score"`
	Confidence       Confidence        `json:"confidence_level"`
	Components       ComponentScores   `json:"components"`
	DetectedBrands   []string          `json:"detected_brands"`
	MatchedReference *ReferenceProduct `json:"matched_reference"`
	IsCounterfeit    bool              `json:"is_counterfeit"`
	Reasons          []string          `json:"reasons"`
	Methods          []DetectionMethod `json:"detection_methods"`
	Similarity       *SimilarityScore  `json:"similarity,omitempty"` // set when an image comparison ran
}

// DuplicateGroup is a set of image IDs judged near-identical.
type DuplicateGroup struct {
	IDs []string `json:"ids"`
}
