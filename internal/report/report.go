// Package report renders analysis results as JSON, CSV, or a terminal
// summary, and writes them to files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/newswatch/pkg/models"
)

// Format specifies the output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatSummary Format = "summary"
)

// ParseFormat validates a format name from a flag or query parameter.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatSummary, "":
		return FormatSummary, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

// WriteJSON renders the complete result as indented JSON.
func WriteJSON(w io.Writer, res *models.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// csvHeader is the column order of the CSV export.
var csvHeader = []string{
	"asset", "title", "source", "url", "published_at",
	"sentiment", "impact", "confidence", "method",
}

// WriteCSV renders one row per analyzed entry.
func WriteCSV(w io.Writer, res *models.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, e := range res.Entries {
		published := ""
		if !e.PublishedAt.IsZero() {
			published = e.PublishedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			e.Asset,
			e.Title,
			e.Source,
			e.URL,
			published,
			string(e.Sentiment),
			strconv.FormatFloat(e.Impact, 'f', 3, 64),
			strconv.FormatFloat(e.Confidence, 'f', 3, 64),
			string(e.Method),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary renders a human-readable terminal summary.
func WriteSummary(w io.Writer, res *models.AnalysisResult) error {
	stats := res.Stats()

	fmt.Fprintf(w, "Portfolio News Analysis - %s\n", res.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Assets: %s | Articles: %d | Window: %dd\n\n",
		strings.Join(res.Request.Assets, ", "), stats.TotalArticles, res.Request.DaysBack)

	assets := make([]string, 0, len(res.Request.Assets))
	assets = append(assets, res.Request.Assets...)
	sort.Strings(assets)

	for _, asset := range assets {
		status := res.Statuses[asset]
		m, ok := res.Portfolio.Assets[asset]
		if !ok || m.ArticleCount == 0 {
			fmt.Fprintf(w, "%-10s no articles (%s)\n", asset, status)
			continue
		}
		fmt.Fprintf(w, "%-10s %d articles | sentiment %+.2f | impact %+.2f | dominant %s",
			asset, m.ArticleCount, m.AvgSentiment, m.AvgImpact, m.DominantSentiment)
		if status == models.StatusDegraded {
			fmt.Fprint(w, " | keyword fallback only")
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nOverall sentiment: %+.2f | Overall impact: %+.2f\n",
		res.Portfolio.OverallSentiment, res.Portfolio.OverallImpact)
	if stats.FallbackArticles > 0 {
		fmt.Fprintf(w, "Note: %d of %d articles scored by keyword fallback.\n",
			stats.FallbackArticles, stats.TotalArticles)
	}
	fmt.Fprintf(w, "Recommendation: %s\n", res.Portfolio.Recommendation)
	return nil
}

// Write renders the result in the given format.
func Write(w io.Writer, format Format, res *models.AnalysisResult) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatSummary:
		return WriteSummary(w, res)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// Save writes the result to a file, picking the format from the file
// extension: .json and .csv are structured, anything else gets the
// text summary.
func Save(path string, res *models.AnalysisResult) error {
	format := FormatSummary
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".csv":
		format = FormatCSV
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, format, res); err != nil {
		return err
	}
	return f.Close()
}
