package fakecheck

import (
	"context"
	"net/http"
	"time"
)

// DefaultConcurrency is the number of listings DetectBatch scores at once.
const DefaultConcurrency = 4

// Cache abstracts key-value caching (Redis, sync.Map, etc.)
// Used to keep embeddings across repeated comparisons of the same source.
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Embedder      Embedder     // optional: visual-semantic model handle (nil = semantic method unavailable)
	Cache         Cache        // optional: embedding cache (nil = no caching)
	StealthClient *http.Client // optional: TLS-fingerprinted client for downloads
	HTTPClient    *http.Client // optional: default http client (nil = http.DefaultClient)
	UserAgent     string       // default: "Mozilla/5.0 (compatible; go-fakecheck/1.0)"

	// Weights configures SimilarityFusion. The zero value selects
	// DefaultWeights; callers that read weights from user input should reject
	// an all-zero set themselves, since it cannot be told apart from unset.
	Weights Weights

	// DisabledMethods removes similarity techniques from the deployment even
	// when they could run. Resolved once in New.
	DisabledMethods []Method

	// LoadTimeout bounds URL fetches (default: 10s).
	LoadTimeout time.Duration
	// MaxImageBytes bounds URL response bodies (default: 10 MiB).
	MaxImageBytes int64

	// MaxKeypoints caps keypoints detected per image (default: 500).
	MaxKeypoints int

	// Brands overrides the built-in brand list and variant map.
	Brands []Brand
	// SuspiciousPhrases overrides the built-in replica lexicon.
	SuspiciousPhrases []string
	// PriceStages overrides the built-in price-ratio stages.
	PriceStages []PriceStage
	// ExtraRiskySites are additional marketplaces annotated as risky.
	ExtraRiskySites []string

	// Concurrency bounds DetectBatch workers (default: DefaultConcurrency).
	Concurrency int

	// Optional callbacks for metrics/logging.
	OnPanic     func(tag string, r any)
	OnDetection func(DetectionEvent) // optional: audit log for every verdict
}

// DetectionEvent is reported through Config.OnDetection after each verdict.
type DetectionEvent struct {
	Title       string
	SourceSite  string
	OverallRisk float64
	Confidence  Confidence
	Counterfeit bool
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; go-fakecheck/1.0)"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultTimeout
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = defaultLoadMaxBytes
	}
	if c.MaxKeypoints <= 0 {
		c.MaxKeypoints = DefaultMaxKeypoints
	}
	if c.Brands == nil {
		c.Brands = DefaultBrands
	}
	if c.SuspiciousPhrases == nil {
		c.SuspiciousPhrases = SuspiciousPhrases
	}
	if c.PriceStages == nil {
		c.PriceStages = DefaultPriceStages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}
