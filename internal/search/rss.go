package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/newswatch/pkg/models"
)

const googleNewsBase = "https://news.google.com/rss/search"

// RSSClient searches Google News through its RSS search feed. It needs
// no token or key, which makes it the natural fallback backend.
type RSSClient struct {
	baseURL string
	parser  *gofeed.Parser
}

// RSSOption configures the RSS client.
type RSSOption func(*RSSClient)

// WithRSSBaseURL overrides the feed endpoint, used in tests.
func WithRSSBaseURL(u string) RSSOption {
	return func(c *RSSClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewRSSClient creates a Google News RSS search client.
func NewRSSClient(opts ...RSSOption) *RSSClient {
	c := &RSSClient{
		baseURL: googleNewsBase,
		parser:  gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RSSClient) Name() string { return BackendRSS }

// Ping fetches a minimal feed to verify the endpoint answers.
func (c *RSSClient) Ping(ctx context.Context) error {
	_, err := c.parser.ParseURLWithContext(c.feedURL("markets", 1), ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	return nil
}

// Search fetches news results for the query.
func (c *RSSClient) Search(ctx context.Context, q Query) ([]models.RawArticle, error) {
	feed, err := c.parser.ParseURLWithContext(c.feedURL(q.Terms, q.DaysBack), ctx)
	if err != nil {
		return nil, fmt.Errorf("rss: parse feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, ErrNoResults
	}

	articles := make([]models.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.RawArticle{
			Title:       cleanHTML(item.Title),
			Description: cleanHTML(item.Description),
			URL:         item.Link,
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC()
		}
		// Google News puts the outlet name in the source element.
		if item.Custom != nil && item.Custom["source"] != "" {
			a.Source = item.Custom["source"]
		}
		articles = append(articles, a)
		if q.MaxResults > 0 && len(articles) >= q.MaxResults {
			break
		}
	}
	return articles, nil
}

// feedURL builds the Google News search feed URL with a recency window.
func (c *RSSClient) feedURL(terms string, daysBack int) string {
	if daysBack < 1 {
		daysBack = 1
	}
	query := fmt.Sprintf("%s when:%dd", terms, daysBack)
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")
	return c.baseURL + "?" + params.Encode()
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
