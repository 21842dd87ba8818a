package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/llm"
	"github.com/seenimoa/newswatch/internal/logging"
	"github.com/seenimoa/newswatch/pkg/models"
)

type fakeProvider struct {
	content string
	err     error
	delay   time.Duration
}

func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) Models() []string               { return nil }
func (f *fakeProvider) Ping(ctx context.Context) error { return nil }
func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func testArticle() models.RawArticle {
	return models.RawArticle{
		Title:       "Apple shares surge on record profit",
		Description: "Strong quarter",
		URL:         "https://www.reuters.com/apple",
		Source:      "reuters.com",
	}
}

func TestAnalyzeAISuccess(t *testing.T) {
	p := &fakeProvider{content: `{"sentiment":"positive","impact":0.7,"confidence":0.85,"summary":"Record quarter."}`}
	a := New(p, WithLogger(logging.Discard()))

	entry := a.Analyze(context.Background(), "AAPL", testArticle())
	if entry.Method != models.MethodAI {
		t.Fatalf("Method = %q, want ai", entry.Method)
	}
	if entry.Sentiment != models.SentimentPositive || entry.Impact != 0.7 || entry.Confidence != 0.85 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Summary != "Record quarter." {
		t.Errorf("Summary = %q", entry.Summary)
	}
	if err := entry.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAnalyzeStripsMarkdownFences(t *testing.T) {
	p := &fakeProvider{content: "```json\n{\"sentiment\":\"negative\",\"impact\":-0.4,\"confidence\":0.6,\"summary\":\"Bad news.\"}\n```"}
	a := New(p, WithLogger(logging.Discard()))

	entry := a.Analyze(context.Background(), "AAPL", testArticle())
	if entry.Method != models.MethodAI {
		t.Fatalf("Method = %q, want ai (fence not stripped?)", entry.Method)
	}
	if entry.Sentiment != models.SentimentNegative {
		t.Errorf("Sentiment = %q", entry.Sentiment)
	}
}

func TestAnalyzeFallbackOnProviderError(t *testing.T) {
	p := &fakeProvider{err: llm.ErrProviderDown}
	a := New(p, WithLogger(logging.Discard()))

	entry := a.Analyze(context.Background(), "AAPL", testArticle())
	if entry.Method != models.MethodFallback {
		t.Fatalf("Method = %q, want fallback", entry.Method)
	}
	// Headline has clear positive keywords.
	if entry.Sentiment != models.SentimentPositive {
		t.Errorf("Sentiment = %q, want positive", entry.Sentiment)
	}
	if entry.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want fixed fallback confidence", entry.Confidence)
	}
	if err := entry.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAnalyzeFallbackOnMalformedJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "the sentiment is positive"},
		{"unknown sentiment", `{"sentiment":"bullish","impact":0.5,"confidence":0.5,"summary":"x"}`},
		{"impact out of range", `{"sentiment":"positive","impact":1.5,"confidence":0.5,"summary":"x"}`},
		{"confidence out of range", `{"sentiment":"positive","impact":0.5,"confidence":2,"summary":"x"}`},
		{"sign mismatch", `{"sentiment":"positive","impact":-0.5,"confidence":0.5,"summary":"x"}`},
		{"neutral beyond cap", `{"sentiment":"neutral","impact":0.8,"confidence":0.5,"summary":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeProvider{content: tt.content}, WithLogger(logging.Discard()))
			entry := a.Analyze(context.Background(), "AAPL", testArticle())
			if entry.Method != models.MethodFallback {
				t.Errorf("Method = %q, want fallback", entry.Method)
			}
		})
	}
}

func TestAnalyzeNilProviderUsesFallback(t *testing.T) {
	a := New(nil, WithLogger(logging.Discard()))
	entry := a.Analyze(context.Background(), "AAPL", testArticle())
	if entry.Method != models.MethodFallback {
		t.Errorf("Method = %q, want fallback", entry.Method)
	}
}

func TestJudgeTimesOut(t *testing.T) {
	p := &fakeProvider{
		content: `{"sentiment":"neutral","impact":0,"confidence":0.5,"summary":"x"}`,
		delay:   200 * time.Millisecond,
	}
	a := New(p, WithTimeout(10*time.Millisecond), WithLogger(logging.Discard()))

	out := a.Judge(context.Background(), "AAPL", testArticle())
	if out.Err == nil {
		t.Fatal("Judge: expected timeout error")
	}
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("Judge error = %v, want deadline exceeded", out.Err)
	}
	if out.Judgment != nil {
		t.Error("Outcome has both judgment and error")
	}
}

func TestOutcomeIsTagged(t *testing.T) {
	p := &fakeProvider{content: `{"sentiment":"neutral","impact":0.1,"confidence":0.5,"summary":"x"}`}
	a := New(p, WithLogger(logging.Discard()))

	out := a.Judge(context.Background(), "AAPL", testArticle())
	if out.Err != nil {
		t.Fatalf("Judge: %v", out.Err)
	}
	if out.Judgment == nil {
		t.Fatal("Outcome has neither judgment nor error")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFromConfigWiresLimiter(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.TimeoutSec = 30

	a := NewFromConfig(cfg, &fakeProvider{}, logging.Discard())
	if a.limiter.Limit() != rate.Inf {
		t.Errorf("limit with no delay = %v, want rate.Inf", a.limiter.Limit())
	}
	if a.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", a.timeout)
	}

	cfg.LLM.RequestDelayMS = 100
	a = NewFromConfig(cfg, &fakeProvider{}, logging.Discard())
	if want := rate.Every(100 * time.Millisecond); a.limiter.Limit() != want {
		t.Errorf("limit with 100ms delay = %v, want %v", a.limiter.Limit(), want)
	}
}
