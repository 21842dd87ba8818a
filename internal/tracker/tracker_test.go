package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/logging"
	"github.com/seenimoa/newswatch/pkg/models"
)

type stubSource struct {
	articles map[string][]models.RawArticle
	failing  map[string]error
	order    []string
}

func (s *stubSource) Fetch(ctx context.Context, asset string, maxArticles, daysBack int) ([]models.RawArticle, error) {
	s.order = append(s.order, asset)
	if err, ok := s.failing[asset]; ok {
		return nil, err
	}
	arts := s.articles[asset]
	if len(arts) > maxArticles {
		arts = arts[:maxArticles]
	}
	return arts, nil
}

// stubAnalyzer labels articles with a fixed verdict per asset, or per
// title when one is set.
type stubAnalyzer struct {
	verdicts map[string]models.NewsEntry // template per asset
	byTitle  map[string]models.NewsEntry // template per article title, wins over verdicts
	fallback map[string]bool
}

func (s *stubAnalyzer) Analyze(ctx context.Context, asset string, art models.RawArticle) models.NewsEntry {
	e, ok := s.byTitle[art.Title]
	if !ok {
		e, ok = s.verdicts[asset]
	}
	if !ok {
		e = models.NewsEntry{Sentiment: models.SentimentNeutral, Method: models.MethodAI}
	}
	e.Asset = asset
	e.Title = art.Title
	e.URL = art.URL
	if s.fallback[asset] {
		e.Method = models.MethodFallback
		e.Confidence = 0.3
	}
	return e
}

func limitsConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Limits.MaxAssets = 10
	cfg.Limits.DefaultArticles = 5
	cfg.Limits.MaxArticles = 20
	cfg.Limits.MinDaysBack = 1
	cfg.Limits.MaxDaysBack = 7
	return cfg
}

func articlesFor(asset string, n int) []models.RawArticle {
	var out []models.RawArticle
	for i := 0; i < n; i++ {
		out = append(out, models.RawArticle{
			Title: fmt.Sprintf("%s article %d", asset, i),
			URL:   fmt.Sprintf("https://www.reuters.com/%s/%d", asset, i),
		})
	}
	return out
}

// ── Validation ──

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{"no assets", Request{Assets: nil, MaxArticles: 5, DaysBack: 1}, "assets"},
		{"only empty assets", Request{Assets: []string{" ", ""}, MaxArticles: 5, DaysBack: 1}, "assets"},
		{"malformed symbol", Request{Assets: []string{"AA PL!"}, MaxArticles: 5, DaysBack: 1}, "assets"},
		{"too many assets", Request{
			Assets:      []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "B1", "B2"},
			MaxArticles: 5, DaysBack: 1,
		}, "assets"},
		{"articles too high", Request{Assets: []string{"AAPL"}, MaxArticles: 21, DaysBack: 1}, "articles"},
		{"articles negative", Request{Assets: []string{"AAPL"}, MaxArticles: -1, DaysBack: 1}, "articles"},
		{"days too low", Request{Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: -2}, "days"},
		{"days too high", Request{Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: 8}, "days"},
	}

	tr := New(limitsConfig(), &stubSource{}, &stubAnalyzer{}, logging.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.AnalyzePortfolio(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateNormalizesAndDefaults(t *testing.T) {
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": articlesFor("AAPL", 1),
		"TSLA": articlesFor("TSLA", 1),
	}}
	tr := New(limitsConfig(), src, &stubAnalyzer{}, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{" aapl ", "tesla", "AAPL"},
	})
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}
	if len(res.Request.Assets) != 2 || res.Request.Assets[0] != "AAPL" || res.Request.Assets[1] != "TSLA" {
		t.Errorf("normalized assets = %v", res.Request.Assets)
	}
	if res.Request.MaxArticles != 5 {
		t.Errorf("MaxArticles default = %d, want 5", res.Request.MaxArticles)
	}
	if res.Request.DaysBack != 1 {
		t.Errorf("DaysBack default = %d, want 1", res.Request.DaysBack)
	}
}

// ── Pipeline ──

func TestScrapeFailureIsolation(t *testing.T) {
	src := &stubSource{
		articles: map[string][]models.RawArticle{
			"AAPL": articlesFor("AAPL", 2),
			"MSFT": articlesFor("MSFT", 2),
		},
		failing: map[string]error{"TSLA": errors.New("backend down")},
	}
	an := &stubAnalyzer{verdicts: map[string]models.NewsEntry{
		"AAPL": {Sentiment: models.SentimentPositive, Impact: 0.5, Confidence: 0.8, Method: models.MethodAI},
		"MSFT": {Sentiment: models.SentimentNegative, Impact: -0.3, Confidence: 0.8, Method: models.MethodAI},
	}}
	tr := New(limitsConfig(), src, an, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL", "TSLA", "MSFT"}, MaxArticles: 5, DaysBack: 1,
	})
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}

	if res.Statuses["TSLA"] != models.StatusScrapeFailed {
		t.Errorf("TSLA status = %q, want scrape_failed", res.Statuses["TSLA"])
	}
	if res.Statuses["AAPL"] != models.StatusOK || res.Statuses["MSFT"] != models.StatusOK {
		t.Errorf("statuses = %v", res.Statuses)
	}
	if len(res.Entries) != 4 {
		t.Errorf("entries = %d, want 4 (two healthy assets)", len(res.Entries))
	}
	// The failed asset still gets a metrics entry, just an empty one.
	m, ok := res.Portfolio.Assets["TSLA"]
	if !ok {
		t.Fatalf("no AssetMetrics for failed asset; Portfolio.Assets = %v", res.Portfolio.Assets)
	}
	if m.ArticleCount != 0 || m.AvgSentiment != 0 || m.AvgImpact != 0 {
		t.Errorf("failed asset metrics = %+v, want zero counts and averages", m)
	}
	if m.DominantSentiment != models.SentimentNeutral {
		t.Errorf("failed asset dominant = %q, want neutral", m.DominantSentiment)
	}
	// But it must not drag the overall averages toward zero: the mean
	// runs over the two contributing assets, not all three.
	if want := (0.5 + -0.3) / 2.0; math.Abs(res.Portfolio.OverallImpact-want) > 1e-9 {
		t.Errorf("OverallImpact = %v, want %v (failed asset excluded)", res.Portfolio.OverallImpact, want)
	}
}

func TestEveryRequestedAssetHasMetrics(t *testing.T) {
	src := &stubSource{
		articles: map[string][]models.RawArticle{"AAPL": articlesFor("AAPL", 1)},
		failing:  map[string]error{"TSLA": errors.New("backend down")},
	}
	an := &stubAnalyzer{verdicts: map[string]models.NewsEntry{
		"AAPL": {Sentiment: models.SentimentPositive, Impact: 0.5, Confidence: 0.8, Method: models.MethodAI},
	}}
	tr := New(limitsConfig(), src, an, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL", "TSLA"}, MaxArticles: 5, DaysBack: 1,
	})
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}

	if len(res.Portfolio.Assets) != 2 {
		t.Fatalf("Portfolio.Assets has %d entries, want one per requested asset", len(res.Portfolio.Assets))
	}
	if m := res.Portfolio.Assets["TSLA"]; m.ArticleCount != 0 || m.DominantSentiment != models.SentimentNeutral {
		t.Errorf("TSLA metrics = %+v, want neutral count-0", m)
	}
	if res.Portfolio.Assets["AAPL"].ArticleCount != 1 {
		t.Errorf("AAPL metrics = %+v", res.Portfolio.Assets["AAPL"])
	}
}

func TestAllFallbackIsDegraded(t *testing.T) {
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": articlesFor("AAPL", 3),
	}}
	an := &stubAnalyzer{fallback: map[string]bool{"AAPL": true}}
	tr := New(limitsConfig(), src, an, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: 1,
	})
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}
	if res.Statuses["AAPL"] != models.StatusDegraded {
		t.Errorf("status = %q, want degraded", res.Statuses["AAPL"])
	}
	if res.Stats().FallbackArticles != 3 {
		t.Errorf("FallbackArticles = %d, want 3", res.Stats().FallbackArticles)
	}
}

func TestSequentialProcessing(t *testing.T) {
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": articlesFor("AAPL", 1),
		"MSFT": articlesFor("MSFT", 1),
		"TSLA": articlesFor("TSLA", 1),
	}}
	tr := New(limitsConfig(), src, &stubAnalyzer{}, logging.Discard())

	_, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL", "MSFT", "TSLA"}, MaxArticles: 5, DaysBack: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(src.order, ",") != "AAPL,MSFT,TSLA" {
		t.Errorf("fetch order = %v, want request order", src.order)
	}
}

func TestEqualWeightAggregation(t *testing.T) {
	// AAPL has 8 strongly positive articles, MSFT one mildly negative.
	// With equal per-asset weighting the overall sentiment is the mean
	// of the two per-asset averages, not dominated by AAPL's volume.
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": articlesFor("AAPL", 8),
		"MSFT": articlesFor("MSFT", 1),
	}}
	an := &stubAnalyzer{verdicts: map[string]models.NewsEntry{
		"AAPL": {Sentiment: models.SentimentPositive, Impact: 0.8, Confidence: 0.9, Method: models.MethodAI},
		"MSFT": {Sentiment: models.SentimentNegative, Impact: -0.4, Confidence: 0.9, Method: models.MethodAI},
	}}
	tr := New(limitsConfig(), src, an, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL", "MSFT"}, MaxArticles: 10, DaysBack: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Per-asset sentiment averages are +1 and -1, so overall is 0.
	if math.Abs(res.Portfolio.OverallSentiment) > 1e-9 {
		t.Errorf("OverallSentiment = %v, want 0 (equal weighting)", res.Portfolio.OverallSentiment)
	}
	if want := (0.8 + -0.4) / 2.0; math.Abs(res.Portfolio.OverallImpact-want) > 1e-9 {
		t.Errorf("OverallImpact = %v, want %v", res.Portfolio.OverallImpact, want)
	}
}

func TestMixedSentimentSingleAsset(t *testing.T) {
	// One asset, one positive and one negative article: the sentiment
	// averages cancel out, the tie makes the dominant label neutral, and
	// the single-asset portfolio mirrors the asset metrics exactly.
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": {
			{Title: "AAPL beats estimates", URL: "https://www.reuters.com/AAPL/up"},
			{Title: "AAPL faces lawsuit", URL: "https://www.reuters.com/AAPL/down"},
		},
	}}
	an := &stubAnalyzer{byTitle: map[string]models.NewsEntry{
		"AAPL beats estimates": {Sentiment: models.SentimentPositive, Impact: 0.6, Confidence: 0.9, Method: models.MethodAI},
		"AAPL faces lawsuit":   {Sentiment: models.SentimentNegative, Impact: -0.4, Confidence: 0.7, Method: models.MethodAI},
	}}
	tr := New(limitsConfig(), src, an, logging.Discard())

	res, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: 1,
	})
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}

	m := res.Portfolio.Assets["AAPL"]
	if m.ArticleCount != 2 {
		t.Fatalf("ArticleCount = %d, want 2", m.ArticleCount)
	}
	if math.Abs(m.AvgSentiment) > 1e-9 {
		t.Errorf("AvgSentiment = %v, want 0 (+1 and -1 cancel)", m.AvgSentiment)
	}
	if want := (0.6 + -0.4) / 2.0; math.Abs(m.AvgImpact-want) > 1e-9 {
		t.Errorf("AvgImpact = %v, want %v", m.AvgImpact, want)
	}
	if m.DominantSentiment != models.SentimentNeutral {
		t.Errorf("DominantSentiment = %q, want neutral on a tie", m.DominantSentiment)
	}
	if res.Statuses["AAPL"] != models.StatusOK {
		t.Errorf("status = %q, want ok", res.Statuses["AAPL"])
	}

	// Single contributing asset: the portfolio is the asset.
	if res.Portfolio.OverallSentiment != m.AvgSentiment {
		t.Errorf("OverallSentiment = %v, want %v", res.Portfolio.OverallSentiment, m.AvgSentiment)
	}
	if res.Portfolio.OverallImpact != m.AvgImpact {
		t.Errorf("OverallImpact = %v, want %v", res.Portfolio.OverallImpact, m.AvgImpact)
	}
}

func TestProgressCallback(t *testing.T) {
	src := &stubSource{articles: map[string][]models.RawArticle{
		"AAPL": articlesFor("AAPL", 2),
	}}
	tr := New(limitsConfig(), src, &stubAnalyzer{}, logging.Discard())

	var events []string
	_, err := tr.AnalyzePortfolio(context.Background(), Request{
		Assets: []string{"AAPL"}, MaxArticles: 5, DaysBack: 1,
		Progress: func(asset, stage string, n int) {
			events = append(events, fmt.Sprintf("%s/%s/%d", asset, stage, n))
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"AAPL/scraping/0", "AAPL/analyzing/1", "AAPL/analyzing/2"}
	if strings.Join(events, " ") != strings.Join(want, " ") {
		t.Errorf("progress events = %v, want %v", events, want)
	}
}

// ── Recommendation bands ──

func TestRecommendation(t *testing.T) {
	tests := []struct {
		sent, impact float64
		contributing int
		wantContains string
	}{
		{0.8, 0.5, 2, "strongly positive"},
		{0.3, 0.1, 2, "positive"},
		{0.0, 0.0, 2, "mixed or neutral"},
		{-0.3, -0.1, 2, "negative"},
		{-0.8, -0.5, 2, "strongly negative"},
		{0, 0, 0, "No news found"},
	}
	for _, tt := range tests {
		got := recommendation(tt.sent, tt.impact, tt.contributing)
		if !strings.Contains(got, tt.wantContains) {
			t.Errorf("recommendation(%v, %v, %d) = %q, want containing %q",
				tt.sent, tt.impact, tt.contributing, got, tt.wantContains)
		}
	}
}

// ── Connectivity ──

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestConnectivityCheck(t *testing.T) {
	tr := New(limitsConfig(), &stubSource{}, &stubAnalyzer{}, logging.Discard())
	tr.RegisterPinger("search", stubPinger{})
	tr.RegisterPinger("llm", stubPinger{err: errors.New("connection refused")})

	results := tr.TestConnectivity(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["search"] != nil {
		t.Errorf("search = %v, want nil", results["search"])
	}
	if results["llm"] == nil {
		t.Error("llm = nil, want error")
	}
}
