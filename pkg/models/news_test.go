package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func validEntry() NewsEntry {
	return NewsEntry{
		Asset:       "AAPL",
		Title:       "Apple beats earnings expectations",
		URL:         "https://www.reuters.com/apple-earnings",
		Source:      "reuters.com",
		PublishedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Sentiment:   SentimentPositive,
		Impact:      0.6,
		Confidence:  0.8,
		Method:      MethodAI,
	}
}

func TestNewsEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NewsEntry)
		wantErr bool
	}{
		{"valid", func(e *NewsEntry) {}, false},
		{"empty asset", func(e *NewsEntry) { e.Asset = "" }, true},
		{"empty title", func(e *NewsEntry) { e.Title = "" }, true},
		{"unknown sentiment", func(e *NewsEntry) { e.Sentiment = "bullish" }, true},
		{"unknown method", func(e *NewsEntry) { e.Method = "manual" }, true},
		{"impact above range", func(e *NewsEntry) { e.Impact = 1.2 }, true},
		{"impact below range", func(e *NewsEntry) { e.Impact = -1.2; e.Sentiment = SentimentNegative }, true},
		{"confidence out of range", func(e *NewsEntry) { e.Confidence = 1.5 }, true},
		{"positive with negative impact", func(e *NewsEntry) { e.Impact = -0.3 }, true},
		{"negative with positive impact", func(e *NewsEntry) {
			e.Sentiment = SentimentNegative
			e.Impact = 0.3
		}, true},
		{"negative with zero impact", func(e *NewsEntry) {
			e.Sentiment = SentimentNegative
			e.Impact = 0
		}, false},
		{"neutral within cap", func(e *NewsEntry) {
			e.Sentiment = SentimentNeutral
			e.Impact = 0.2
		}, false},
		{"neutral beyond cap", func(e *NewsEntry) {
			e.Sentiment = SentimentNeutral
			e.Impact = 0.5
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeAssetMetrics(t *testing.T) {
	entries := []NewsEntry{
		{Asset: "AAPL", Title: "a", Sentiment: SentimentPositive, Impact: 0.8, Confidence: 0.9, Method: MethodAI},
		{Asset: "AAPL", Title: "b", Sentiment: SentimentPositive, Impact: 0.4, Confidence: 0.7, Method: MethodAI},
		{Asset: "AAPL", Title: "c", Sentiment: SentimentNegative, Impact: -0.6, Confidence: 0.8, Method: MethodAI},
		{Asset: "MSFT", Title: "d", Sentiment: SentimentNegative, Impact: -1.0, Confidence: 0.9, Method: MethodAI},
	}

	m := ComputeAssetMetrics("AAPL", entries)
	if m.ArticleCount != 3 {
		t.Fatalf("ArticleCount = %d, want 3", m.ArticleCount)
	}
	if want := (1.0 + 1.0 - 1.0) / 3.0; math.Abs(m.AvgSentiment-want) > 1e-9 {
		t.Errorf("AvgSentiment = %v, want %v", m.AvgSentiment, want)
	}
	if want := (0.8 + 0.4 - 0.6) / 3.0; math.Abs(m.AvgImpact-want) > 1e-9 {
		t.Errorf("AvgImpact = %v, want %v", m.AvgImpact, want)
	}
	if m.DominantSentiment != SentimentPositive {
		t.Errorf("DominantSentiment = %q, want positive", m.DominantSentiment)
	}
}

func TestComputeAssetMetricsEmptyAndTies(t *testing.T) {
	empty := ComputeAssetMetrics("TSLA", nil)
	if empty.ArticleCount != 0 || empty.DominantSentiment != SentimentNeutral {
		t.Errorf("empty metrics = %+v, want zero count and neutral", empty)
	}

	tied := ComputeAssetMetrics("TSLA", []NewsEntry{
		{Asset: "TSLA", Title: "a", Sentiment: SentimentPositive, Impact: 0.5, Method: MethodAI},
		{Asset: "TSLA", Title: "b", Sentiment: SentimentNegative, Impact: -0.5, Method: MethodAI},
	})
	if tied.DominantSentiment != SentimentNeutral {
		t.Errorf("tie DominantSentiment = %q, want neutral", tied.DominantSentiment)
	}
}

func TestAnalysisResultStats(t *testing.T) {
	res := AnalysisResult{
		Request: RequestParams{Assets: []string{"AAPL", "MSFT"}, MaxArticles: 5, DaysBack: 1},
		Entries: []NewsEntry{
			{Asset: "AAPL", Title: "a", Sentiment: SentimentPositive, Method: MethodAI},
			{Asset: "AAPL", Title: "b", Sentiment: SentimentNeutral, Method: MethodFallback},
			{Asset: "MSFT", Title: "c", Sentiment: SentimentNegative, Method: MethodFallback},
		},
	}
	s := res.Stats()
	if s.TotalAssets != 2 || s.TotalArticles != 3 || s.FallbackArticles != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.BySentiment[SentimentPositive] != 1 || s.BySentiment[SentimentNeutral] != 1 || s.BySentiment[SentimentNegative] != 1 {
		t.Errorf("BySentiment = %v", s.BySentiment)
	}
}

func TestAnalysisResultJSONRoundTrip(t *testing.T) {
	res := AnalysisResult{
		Entries: []NewsEntry{validEntry()},
		Portfolio: PortfolioAnalysis{
			OverallSentiment: 0.5,
			OverallImpact:    0.3,
			Assets:           map[string]AssetMetrics{"AAPL": {Asset: "AAPL", ArticleCount: 1}},
			Recommendation:   "Portfolio sentiment is positive. Consider maintaining or increasing positions.",
			GeneratedAt:      time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		},
		Request:   RequestParams{Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: 1},
		Statuses:  map[string]AssetStatus{"AAPL": StatusOK},
		Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back AnalysisResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back.Entries) != 1 || back.Entries[0].Asset != "AAPL" {
		t.Errorf("round trip lost entries: %+v", back.Entries)
	}
	if back.Statuses["AAPL"] != StatusOK {
		t.Errorf("Statuses = %v", back.Statuses)
	}
	if back.Portfolio.Assets["AAPL"].ArticleCount != 1 {
		t.Errorf("Portfolio.Assets = %v", back.Portfolio.Assets)
	}
}
