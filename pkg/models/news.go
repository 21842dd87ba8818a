// Package models defines the domain types shared across newswatch:
// raw articles, analyzed news entries, per-asset metrics and the
// portfolio-level analysis result.
package models

import (
	"fmt"
	"time"
)

// Sentiment classifies the tone of a news article toward an asset.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three known sentiment labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Score maps a sentiment label to a numeric value for aggregation.
func (s Sentiment) Score() float64 {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// AnalysisMethod records how a news entry was scored.
type AnalysisMethod string

const (
	// MethodAI means the entry was scored by the configured LLM provider.
	MethodAI AnalysisMethod = "ai"
	// MethodFallback means the keyword heuristic produced the score
	// because the LLM call failed or returned an unusable response.
	MethodFallback AnalysisMethod = "fallback"
)

// AssetStatus describes how the pipeline fared for one asset.
type AssetStatus string

const (
	// StatusOK means articles were found and at least one was AI-scored.
	StatusOK AssetStatus = "ok"
	// StatusScrapeFailed means the search backend returned no usable
	// articles for the asset (error or empty result).
	StatusScrapeFailed AssetStatus = "scrape_failed"
	// StatusDegraded means every article for the asset was scored by
	// the keyword fallback rather than the LLM.
	StatusDegraded AssetStatus = "degraded"
)

// NeutralImpactCap bounds the impact magnitude a neutral entry may carry.
const NeutralImpactCap = 0.25

// RawArticle is an article as returned by a search backend, before
// sentiment analysis.
type RawArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// NewsEntry is a single analyzed article attributed to one asset.
type NewsEntry struct {
	Asset       string         `json:"asset"`
	Title       string         `json:"title"`
	Summary     string         `json:"summary,omitempty"`
	Source      string         `json:"source,omitempty"`
	URL         string         `json:"url"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Sentiment   Sentiment      `json:"sentiment"`
	Impact      float64        `json:"impact"`     // -1.0 .. 1.0
	Confidence  float64        `json:"confidence"` // 0.0 .. 1.0
	Method      AnalysisMethod `json:"method"`
}

// Validate checks the entry's invariants: known enum values, bounded
// scores, and sign consistency between sentiment and impact.
func (e *NewsEntry) Validate() error {
	if e.Asset == "" {
		return fmt.Errorf("news entry: asset is empty")
	}
	if e.Title == "" {
		return fmt.Errorf("news entry: title is empty")
	}
	if !e.Sentiment.Valid() {
		return fmt.Errorf("news entry: unknown sentiment %q", e.Sentiment)
	}
	if e.Method != MethodAI && e.Method != MethodFallback {
		return fmt.Errorf("news entry: unknown analysis method %q", e.Method)
	}
	if e.Impact < -1 || e.Impact > 1 {
		return fmt.Errorf("news entry: impact %.3f out of range [-1, 1]", e.Impact)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("news entry: confidence %.3f out of range [0, 1]", e.Confidence)
	}
	switch e.Sentiment {
	case SentimentPositive:
		if e.Impact < 0 {
			return fmt.Errorf("news entry: positive sentiment with negative impact %.3f", e.Impact)
		}
	case SentimentNegative:
		if e.Impact > 0 {
			return fmt.Errorf("news entry: negative sentiment with positive impact %.3f", e.Impact)
		}
	case SentimentNeutral:
		if e.Impact < -NeutralImpactCap || e.Impact > NeutralImpactCap {
			return fmt.Errorf("news entry: neutral sentiment with impact %.3f beyond ±%.2f", e.Impact, NeutralImpactCap)
		}
	}
	return nil
}

// AssetMetrics aggregates the analyzed entries of a single asset.
type AssetMetrics struct {
	Asset             string    `json:"asset"`
	ArticleCount      int       `json:"article_count"`
	AvgSentiment      float64   `json:"avg_sentiment"` // mean of per-entry sentiment scores
	AvgImpact         float64   `json:"avg_impact"`
	DominantSentiment Sentiment `json:"dominant_sentiment"`
}

// ComputeAssetMetrics derives per-asset metrics from analyzed entries.
// Entries belonging to other assets are ignored. An empty slice yields
// zero metrics with a neutral dominant sentiment.
func ComputeAssetMetrics(asset string, entries []NewsEntry) AssetMetrics {
	m := AssetMetrics{Asset: asset, DominantSentiment: SentimentNeutral}

	var sentSum, impactSum float64
	counts := map[Sentiment]int{}
	for _, e := range entries {
		if e.Asset != asset {
			continue
		}
		m.ArticleCount++
		sentSum += e.Sentiment.Score()
		impactSum += e.Impact
		counts[e.Sentiment]++
	}
	if m.ArticleCount == 0 {
		return m
	}
	m.AvgSentiment = sentSum / float64(m.ArticleCount)
	m.AvgImpact = impactSum / float64(m.ArticleCount)
	m.DominantSentiment = dominant(counts)
	return m
}

// dominant picks the most frequent label; ties resolve to neutral.
func dominant(counts map[Sentiment]int) Sentiment {
	pos, neg, neu := counts[SentimentPositive], counts[SentimentNegative], counts[SentimentNeutral]
	switch {
	case pos > neg && pos > neu:
		return SentimentPositive
	case neg > pos && neg > neu:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// PortfolioAnalysis is the portfolio-wide rollup across all assets.
// Every asset that produced at least one entry contributes with equal
// weight regardless of its article count.
type PortfolioAnalysis struct {
	OverallSentiment float64                 `json:"overall_sentiment"`
	OverallImpact    float64                 `json:"overall_impact"`
	Assets           map[string]AssetMetrics `json:"assets"`
	Recommendation   string                  `json:"recommendation"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// RequestParams echoes the parameters an analysis was run with.
type RequestParams struct {
	Assets      []string `json:"assets"`
	MaxArticles int      `json:"max_articles"`
	DaysBack    int      `json:"days_back"`
}

// AnalysisResult is the complete output of one portfolio analysis run.
type AnalysisResult struct {
	Entries   []NewsEntry            `json:"entries"`
	Portfolio PortfolioAnalysis      `json:"portfolio"`
	Request   RequestParams          `json:"request"`
	Statuses  map[string]AssetStatus `json:"statuses"`
	Timestamp time.Time              `json:"timestamp"`
}

// SummaryStats are derived counts used by the text report and dashboard.
type SummaryStats struct {
	TotalAssets      int               `json:"total_assets"`
	TotalArticles    int               `json:"total_articles"`
	FallbackArticles int               `json:"fallback_articles"`
	BySentiment      map[Sentiment]int `json:"by_sentiment"`
}

// Stats computes summary counts over the result's entries.
func (r *AnalysisResult) Stats() SummaryStats {
	s := SummaryStats{
		TotalAssets: len(r.Request.Assets),
		BySentiment: map[Sentiment]int{},
	}
	for _, e := range r.Entries {
		s.TotalArticles++
		if e.Method == MethodFallback {
			s.FallbackArticles++
		}
		s.BySentiment[e.Sentiment]++
	}
	return s
}
