package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/seenimoa/newswatch/pkg/models"
)

const (
	ddgBaseURL = "https://duckduckgo.com"
	ddgUA      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// vqdPattern extracts the request token DuckDuckGo embeds in its HTML.
var vqdPattern = regexp.MustCompile(`vqd=["']?([\d-]+)["']?`)

// DDGClient searches DuckDuckGo's news vertical. The JSON endpoint
// requires a per-query vqd token obtained from the HTML search page,
// so every search is two requests.
type DDGClient struct {
	baseURL string
	client  *http.Client
}

// DDGOption configures the DuckDuckGo client.
type DDGOption func(*DDGClient)

// WithDDGBaseURL overrides the endpoint, used in tests.
func WithDDGBaseURL(u string) DDGOption {
	return func(c *DDGClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithDDGHTTPClient sets a custom HTTP client.
func WithDDGHTTPClient(client *http.Client) DDGOption {
	return func(c *DDGClient) { c.client = client }
}

// NewDDGClient creates a DuckDuckGo news search client.
func NewDDGClient(opts ...DDGOption) *DDGClient {
	c := &DDGClient{
		baseURL: ddgBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DDGClient) Name() string { return BackendDDG }

// Ping checks that the search page answers.
func (c *DDGClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?q=test", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", ddgUA)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackendDown, resp.StatusCode)
	}
	return nil
}

// Search fetches news results for the query.
func (c *DDGClient) Search(ctx context.Context, q Query) ([]models.RawArticle, error) {
	vqd, err := c.fetchVQD(ctx, q.Terms)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("l", "us-en")
	params.Set("o", "json")
	params.Set("noamp", "1")
	params.Set("q", q.Terms)
	params.Set("vqd", vqd)
	params.Set("df", recencyFilter(q.DaysBack))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/news.js?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ddgUA)
	req.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ddg: HTTP %d", resp.StatusCode)
	}

	var raw ddgNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ddg: decode response: %w", err)
	}
	if len(raw.Results) == 0 {
		return nil, ErrNoResults
	}

	articles := make([]models.RawArticle, 0, len(raw.Results))
	for _, r := range raw.Results {
		a := models.RawArticle{
			Title:       r.Title,
			Description: r.Excerpt,
			URL:         r.URL,
			Source:      r.Source,
		}
		if r.Date > 0 {
			a.PublishedAt = time.Unix(r.Date, 0).UTC()
		}
		articles = append(articles, a)
		if q.MaxResults > 0 && len(articles) >= q.MaxResults {
			break
		}
	}
	return articles, nil
}

// fetchVQD loads the HTML search page and pulls the vqd token out.
func (c *DDGClient) fetchVQD(ctx context.Context, terms string) (string, error) {
	params := url.Values{}
	params.Set("q", terms)
	params.Set("ia", "news")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ddgUA)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ddg: token page HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", fmt.Errorf("ddg: read token page: %w", err)
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("ddg: vqd token not found")
	}
	return string(m[1]), nil
}

type ddgNewsResponse struct {
	Results []ddgNewsResult `json:"results"`
}

type ddgNewsResult struct {
	Date    int64  `json:"date"` // unix seconds
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
	Source  string `json:"source"`
}
