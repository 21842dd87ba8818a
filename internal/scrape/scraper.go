// Package scrape turns a search backend into a bounded, filtered feed
// of raw articles per asset: allow-listed sources only, URLs deduped,
// results capped and cached.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/infra"
	"github.com/seenimoa/newswatch/internal/search"
	"github.com/seenimoa/newswatch/pkg/models"
)

// searchHeadroom asks the backend for extra results so the allow-list
// filter still leaves enough articles to fill the cap.
const searchHeadroom = 3

// ErrEmptyAsset rejects a fetch for a blank asset symbol.
var ErrEmptyAsset = errors.New("empty asset symbol")

// Failure wraps a scrape error with the asset it happened for.
type Failure struct {
	Asset string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("scrape %s: %v", f.Asset, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Scraper fetches and filters news articles for single assets.
type Scraper struct {
	searcher search.Searcher
	limiter  *rate.Limiter
	cache    *infra.Cache
	allowed  []string
	enrich   bool
	client   *http.Client
	log      *logrus.Logger
}

// New creates a scraper over the given search backend. The limiter
// paces outbound search requests; passing an unlimited limiter
// disables pacing, which tests rely on.
func New(cfg *config.Config, searcher search.Searcher, limiter *rate.Limiter, log *logrus.Logger) *Scraper {
	if limiter == nil {
		limiter = infra.NewRequestLimiter(time.Duration(cfg.Search.RequestDelayMS) * time.Millisecond)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scraper{
		searcher: searcher,
		limiter:  limiter,
		cache:    infra.NewCache(time.Duration(cfg.Search.CacheTTLSec) * time.Second),
		allowed:  cfg.Search.AllowedDomains,
		enrich:   cfg.Search.EnrichArticles,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// Fetch returns up to maxArticles allow-listed articles about the asset
// published within the last daysBack days. Results are cached per
// (asset, maxArticles, daysBack) tuple.
func (s *Scraper) Fetch(ctx context.Context, asset string, maxArticles, daysBack int) ([]models.RawArticle, error) {
	if strings.TrimSpace(asset) == "" {
		return nil, &Failure{Asset: asset, Err: ErrEmptyAsset}
	}

	cacheKey := fmt.Sprintf("news:%s:%d:%d", asset, maxArticles, daysBack)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]models.RawArticle), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &Failure{Asset: asset, Err: err}
	}

	q := search.Query{
		Terms:      fmt.Sprintf("%s financial news", asset),
		MaxResults: maxArticles * searchHeadroom,
		DaysBack:   daysBack,
	}
	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, &Failure{Asset: asset, Err: err}
	}

	articles := s.filter(results, maxArticles)
	s.log.WithFields(logrus.Fields{
		"asset":    asset,
		"found":    len(results),
		"accepted": len(articles),
	}).Debug("scraped news")

	if len(articles) == 0 {
		return nil, &Failure{Asset: asset, Err: search.ErrNoResults}
	}

	if s.enrich {
		s.enrichArticles(ctx, articles)
	}

	s.cache.Set(cacheKey, articles)
	return articles, nil
}

// filter applies the allow-list, drops articles without a usable URL or
// title, dedupes by URL keeping the first occurrence, and caps the
// result.
func (s *Scraper) filter(in []models.RawArticle, limit int) []models.RawArticle {
	var out []models.RawArticle
	seen := map[string]bool{}
	for _, a := range in {
		if a.URL == "" || a.Title == "" {
			continue
		}
		domain := domainOf(a.URL)
		if domain == "" || !s.domainAllowed(domain) {
			continue
		}
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		if a.Source == "" {
			a.Source = domain
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// domainAllowed matches a host against the allow-list, accepting
// subdomains of listed entries.
func (s *Scraper) domainAllowed(domain string) bool {
	for _, allowed := range s.allowed {
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	return false
}

// domainOf extracts the registrable host of a URL, minus any www prefix.
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// enrichArticles fills in missing descriptions by fetching each page
// and reading its metadata. Errors are logged and skipped.
func (s *Scraper) enrichArticles(ctx context.Context, articles []models.RawArticle) {
	for i := range articles {
		if articles[i].Description != "" {
			continue
		}
		desc, err := s.fetchDescription(ctx, articles[i].URL)
		if err != nil {
			s.log.WithError(err).WithField("url", articles[i].URL).Debug("enrich failed")
			continue
		}
		articles[i].Description = desc
	}
}

// fetchDescription loads a page and returns its meta description, or
// the og:description when the plain one is absent.
func (s *Scraper) fetchDescription(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newswatch/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		return strings.TrimSpace(desc), nil
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && desc != "" {
		return strings.TrimSpace(desc), nil
	}
	return "", fmt.Errorf("no description metadata")
}
