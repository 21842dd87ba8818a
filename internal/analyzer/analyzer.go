// Package analyzer scores individual articles. It asks the configured
// LLM for a structured judgment and falls back to the keyword scorer
// when the call fails, so Analyze always yields a usable entry.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/newswatch/internal/analysis/sentiment"
	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/infra"
	"github.com/seenimoa/newswatch/internal/llm"
	"github.com/seenimoa/newswatch/pkg/models"
)

// DefaultTimeout bounds a single LLM judgment call.
const DefaultTimeout = 60 * time.Second

const systemPrompt = `You are a financial news analyst. Given one news article about an asset, respond with a single JSON object and nothing else:
{"sentiment": "positive"|"negative"|"neutral", "impact": <float -1.0..1.0>, "confidence": <float 0.0..1.0>, "summary": "<one sentence>"}
The impact sign must match the sentiment: positive sentiment needs impact >= 0, negative needs impact <= 0.`

// Judgment is a structured sentiment verdict for one article.
type Judgment struct {
	Sentiment  models.Sentiment `json:"sentiment"`
	Impact     float64          `json:"impact"`
	Confidence float64          `json:"confidence"`
	Summary    string           `json:"summary"`
}

// Outcome is the tagged result of an LLM judgment attempt. Exactly one
// of Judgment and Err is set.
type Outcome struct {
	Judgment *Judgment
	Err      error
}

// Analyzer scores articles through an LLM provider with a keyword
// fallback.
type Analyzer struct {
	provider llm.Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	opts     *llm.ChatOptions
	log      *logrus.Logger
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithTimeout overrides the per-article LLM deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithLimiter sets the rate limiter applied before each LLM call.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Analyzer) { a.limiter = l }
}

// WithChatOptions sets the chat parameters passed to the provider.
func WithChatOptions(opts *llm.ChatOptions) Option {
	return func(a *Analyzer) { a.opts = opts }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// New creates an analyzer over the given provider. A nil provider is
// allowed; every article is then scored by the fallback.
func New(provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		timeout:  DefaultTimeout,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds an analyzer wired to the config's LLM settings.
func NewFromConfig(cfg *config.Config, provider llm.Provider, log *logrus.Logger) *Analyzer {
	timeout := DefaultTimeout
	if cfg.LLM.TimeoutSec > 0 {
		timeout = time.Duration(cfg.LLM.TimeoutSec) * time.Second
	}
	opts := []Option{
		WithTimeout(timeout),
		WithLimiter(infra.NewRequestLimiter(time.Duration(cfg.LLM.RequestDelayMS) * time.Millisecond)),
		WithChatOptions(&llm.ChatOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}),
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	return New(provider, opts...)
}

// Analyze scores one article for an asset. It never returns an error:
// a failed LLM judgment degrades to the keyword fallback, recorded in
// the entry's Method field.
func (a *Analyzer) Analyze(ctx context.Context, asset string, art models.RawArticle) models.NewsEntry {
	out := a.Judge(ctx, asset, art)
	if out.Err != nil {
		a.log.WithError(out.Err).WithFields(logrus.Fields{
			"asset": asset,
			"title": art.Title,
		}).Debug("llm judgment failed, using fallback")
		return a.fallbackEntry(asset, art)
	}

	j := out.Judgment
	return models.NewsEntry{
		Asset:       asset,
		Title:       art.Title,
		Summary:     j.Summary,
		Source:      art.Source,
		URL:         art.URL,
		PublishedAt: art.PublishedAt,
		Sentiment:   j.Sentiment,
		Impact:      j.Impact,
		Confidence:  j.Confidence,
		Method:      models.MethodAI,
	}
}

// Judge asks the LLM for a judgment and validates the response. The
// outcome is tagged rather than thrown: callers inspect Err to decide
// on fallback.
func (a *Analyzer) Judge(ctx context.Context, asset string, art models.RawArticle) Outcome {
	if a.provider == nil {
		return Outcome{Err: llm.ErrNoProviders}
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Outcome{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(buildUserPrompt(asset, art)),
	}
	resp, err := a.provider.Chat(callCtx, messages, a.opts)
	if err != nil {
		return Outcome{Err: err}
	}

	j, err := parseJudgment(resp.Content)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Judgment: j}
}

// fallbackEntry scores the article with the keyword heuristic.
func (a *Analyzer) fallbackEntry(asset string, art models.RawArticle) models.NewsEntry {
	label, impact := sentiment.Classify(art.Title, art.Description)
	return models.NewsEntry{
		Asset:       asset,
		Title:       art.Title,
		Summary:     art.Description,
		Source:      art.Source,
		URL:         art.URL,
		PublishedAt: art.PublishedAt,
		Sentiment:   label,
		Impact:      impact,
		Confidence:  sentiment.FallbackConfidence,
		Method:      models.MethodFallback,
	}
}

func buildUserPrompt(asset string, art models.RawArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset: %s\nHeadline: %s\n", asset, art.Title)
	if art.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", art.Description)
	}
	if art.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", art.Source)
	}
	return b.String()
}

// parseJudgment decodes and validates the model's JSON reply. Models
// often wrap JSON in markdown fences, so those are stripped first.
func parseJudgment(content string) (*Judgment, error) {
	cleaned := stripFences(content)

	var j Judgment
	if err := json.Unmarshal([]byte(cleaned), &j); err != nil {
		return nil, fmt.Errorf("analyzer: parse judgment: %w", err)
	}

	if !j.Sentiment.Valid() {
		return nil, fmt.Errorf("analyzer: unknown sentiment %q", j.Sentiment)
	}
	if j.Impact < -1 || j.Impact > 1 {
		return nil, fmt.Errorf("analyzer: impact %.3f out of range", j.Impact)
	}
	if j.Confidence < 0 || j.Confidence > 1 {
		return nil, fmt.Errorf("analyzer: confidence %.3f out of range", j.Confidence)
	}
	switch j.Sentiment {
	case models.SentimentPositive:
		if j.Impact < 0 {
			return nil, fmt.Errorf("analyzer: positive sentiment with impact %.3f", j.Impact)
		}
	case models.SentimentNegative:
		if j.Impact > 0 {
			return nil, fmt.Errorf("analyzer: negative sentiment with impact %.3f", j.Impact)
		}
	case models.SentimentNeutral:
		if j.Impact < -models.NeutralImpactCap || j.Impact > models.NeutralImpactCap {
			return nil, fmt.Errorf("analyzer: neutral sentiment with impact %.3f", j.Impact)
		}
	}
	return &j, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
