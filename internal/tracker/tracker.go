// Package tracker orchestrates the analysis pipeline: request
// validation, per-asset scraping and scoring, and portfolio-level
// aggregation.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/pkg/models"
	"github.com/seenimoa/newswatch/pkg/utils"
)

// ValidationError describes a rejected request parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request are the parameters of one portfolio analysis run.
type Request struct {
	Assets      []string
	MaxArticles int
	DaysBack    int

	// Progress, when set, is called before each asset is processed and
	// once per analyzed article. Used by the API server to stream
	// progress over WebSocket.
	Progress func(asset, stage string, n int)
}

// ArticleSource yields raw articles for one asset.
type ArticleSource interface {
	Fetch(ctx context.Context, asset string, maxArticles, daysBack int) ([]models.RawArticle, error)
}

// EntryAnalyzer scores one article. Implementations never fail; they
// degrade to a fallback method instead.
type EntryAnalyzer interface {
	Analyze(ctx context.Context, asset string, art models.RawArticle) models.NewsEntry
}

// Pinger reports whether an external dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tracker runs the scrape-analyze-aggregate pipeline.
type Tracker struct {
	cfg      *config.Config
	source   ArticleSource
	analyzer EntryAnalyzer
	log      *logrus.Logger
	pingers  map[string]Pinger
}

// New creates a tracker. cfg supplies the request limits.
func New(cfg *config.Config, source ArticleSource, analyzer EntryAnalyzer, log *logrus.Logger) *Tracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		cfg:      cfg,
		source:   source,
		analyzer: analyzer,
		log:      log,
		pingers:  map[string]Pinger{},
	}
}

// RegisterPinger adds a named dependency to the connectivity check.
func (t *Tracker) RegisterPinger(name string, p Pinger) {
	t.pingers[name] = p
}

// AnalyzePortfolio validates the request and runs the pipeline. Assets
// are processed sequentially; a failing asset is recorded in Statuses
// and never aborts the run. Only validation rejects the whole request.
func (t *Tracker) AnalyzePortfolio(ctx context.Context, req Request) (*models.AnalysisResult, error) {
	assets, err := t.validate(&req)
	if err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		Request: models.RequestParams{
			Assets:      assets,
			MaxArticles: req.MaxArticles,
			DaysBack:    req.DaysBack,
		},
		Statuses:  make(map[string]models.AssetStatus, len(assets)),
		Timestamp: time.Now().UTC(),
	}

	for _, asset := range assets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if req.Progress != nil {
			req.Progress(asset, "scraping", 0)
		}

		articles, err := t.source.Fetch(ctx, asset, req.MaxArticles, req.DaysBack)
		if err != nil {
			t.log.WithError(err).WithField("asset", asset).Warn("scrape failed")
			result.Statuses[asset] = models.StatusScrapeFailed
			continue
		}

		fallbacks := 0
		for i, art := range articles {
			entry := t.analyzer.Analyze(ctx, asset, art)
			if entry.Method == models.MethodFallback {
				fallbacks++
			}
			result.Entries = append(result.Entries, entry)
			if req.Progress != nil {
				req.Progress(asset, "analyzing", i+1)
			}
		}

		if fallbacks == len(articles) {
			result.Statuses[asset] = models.StatusDegraded
		} else {
			result.Statuses[asset] = models.StatusOK
		}
	}

	result.Portfolio = t.aggregate(assets, result.Entries)
	return result, nil
}

// validate normalizes the asset list in place and checks every request
// bound, failing fast on the first violation.
func (t *Tracker) validate(req *Request) ([]string, error) {
	limits := t.cfg.Limits

	if req.MaxArticles == 0 {
		req.MaxArticles = limits.DefaultArticles
	}
	if req.DaysBack == 0 {
		req.DaysBack = limits.MinDaysBack
	}

	var assets []string
	seen := map[string]bool{}
	for _, raw := range req.Assets {
		sym := utils.NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		if !utils.ValidSymbol(sym) {
			return nil, &ValidationError{Field: "assets", Reason: fmt.Sprintf("malformed symbol %q", raw)}
		}
		if !seen[sym] {
			seen[sym] = true
			assets = append(assets, sym)
		}
	}
	if len(assets) == 0 {
		return nil, &ValidationError{Field: "assets", Reason: "at least one asset is required"}
	}
	if len(assets) > limits.MaxAssets {
		return nil, &ValidationError{
			Field:  "assets",
			Reason: fmt.Sprintf("%d assets exceeds the maximum of %d", len(assets), limits.MaxAssets),
		}
	}

	if req.MaxArticles < 1 || req.MaxArticles > limits.MaxArticles {
		return nil, &ValidationError{
			Field:  "articles",
			Reason: fmt.Sprintf("must be between 1 and %d", limits.MaxArticles),
		}
	}
	if req.DaysBack < limits.MinDaysBack || req.DaysBack > limits.MaxDaysBack {
		return nil, &ValidationError{
			Field:  "days",
			Reason: fmt.Sprintf("must be between %d and %d", limits.MinDaysBack, limits.MaxDaysBack),
		}
	}
	return assets, nil
}

// aggregate rolls entries up into portfolio metrics. Every requested
// asset gets a metrics entry; assets with no articles carry neutral
// count-0 metrics and do not contribute to the overall averages. Each
// contributing asset weighs equally regardless of article count.
func (t *Tracker) aggregate(assets []string, entries []models.NewsEntry) models.PortfolioAnalysis {
	p := models.PortfolioAnalysis{
		Assets:      make(map[string]models.AssetMetrics, len(assets)),
		GeneratedAt: time.Now().UTC(),
	}

	var sentSum, impactSum float64
	contributing := 0
	for _, asset := range assets {
		m := models.ComputeAssetMetrics(asset, entries)
		p.Assets[asset] = m
		if m.ArticleCount == 0 {
			continue
		}
		sentSum += m.AvgSentiment
		impactSum += m.AvgImpact
		contributing++
	}

	if contributing > 0 {
		p.OverallSentiment = sentSum / float64(contributing)
		p.OverallImpact = impactSum / float64(contributing)
	}
	p.Recommendation = recommendation(p.OverallSentiment, p.OverallImpact, contributing)
	return p
}

// recommendation maps the overall scores onto an advisory sentence.
func recommendation(sent, impact float64, contributing int) string {
	if contributing == 0 {
		return "No news found for the requested assets. No recommendation."
	}
	switch {
	case sent >= 0.5 && impact >= 0.3:
		return "News flow is strongly positive. Consider increasing exposure."
	case sent >= 0.2:
		return "News flow is positive. Consider maintaining or adding to positions."
	case sent <= -0.5 && impact <= -0.3:
		return "News flow is strongly negative. Consider reducing exposure and reviewing positions."
	case sent <= -0.2:
		return "News flow is negative. Review positions with adverse coverage."
	default:
		return "News flow is mixed or neutral. Hold current positions."
	}
}

// TestConnectivity pings every registered dependency concurrently and
// returns per-dependency results.
func (t *Tracker) TestConnectivity(ctx context.Context) map[string]error {
	results := make(map[string]error, len(t.pingers))
	g, gctx := errgroup.WithContext(ctx)

	type outcome struct {
		name string
		err  error
	}
	ch := make(chan outcome, len(t.pingers))

	for name, p := range t.pingers {
		name, p := name, p
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, 10*time.Second)
			defer cancel()
			ch <- outcome{name: name, err: p.Ping(pingCtx)}
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	for o := range ch {
		results[o.name] = o.err
	}
	return results
}
