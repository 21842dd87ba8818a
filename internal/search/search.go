// Package search provides pluggable news search backends. Two are
// implemented: the DuckDuckGo news API and Google News RSS.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/pkg/models"
)

// Backend names accepted in configuration.
const (
	BackendDDG = "ddg"
	BackendRSS = "rss"
)

// Common errors returned by search backends.
var (
	ErrNoResults   = errors.New("search: no results")
	ErrBackendDown = errors.New("search: backend unavailable")
)

// Query describes one news search.
type Query struct {
	// Terms is the full query string, e.g. "AAPL financial news".
	Terms string
	// MaxResults caps how many articles the backend returns.
	MaxResults int
	// DaysBack restricts results to the recency window (1..7 days).
	DaysBack int
}

// Searcher is a news search backend.
type Searcher interface {
	// Name returns the backend identifier.
	Name() string

	// Search runs the query and returns raw articles, newest first.
	Search(ctx context.Context, q Query) ([]models.RawArticle, error)

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}

// New builds the search backend named in the configuration.
func New(cfg *config.Config) (Searcher, error) {
	switch cfg.Search.Provider {
	case BackendDDG, "":
		return NewDDGClient(), nil
	case BackendRSS:
		return NewRSSClient(), nil
	default:
		return nil, fmt.Errorf("search: unknown provider %q", cfg.Search.Provider)
	}
}

// recencyFilter maps a days-back window to DuckDuckGo's df parameter
// and Google News' when: qualifier granularity. Windows up to three
// days use the day filter, longer ones the week filter.
func recencyFilter(daysBack int) string {
	if daysBack <= 3 {
		return "d"
	}
	return "w"
}
