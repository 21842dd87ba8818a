// newswatch tracks financial news sentiment across a portfolio of
// assets from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/newswatch/api"
	"github.com/seenimoa/newswatch/internal/analyzer"
	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/llm"
	"github.com/seenimoa/newswatch/internal/logging"
	"github.com/seenimoa/newswatch/internal/report"
	"github.com/seenimoa/newswatch/internal/scrape"
	"github.com/seenimoa/newswatch/internal/search"
	"github.com/seenimoa/newswatch/internal/tracker"
	"github.com/seenimoa/newswatch/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "newswatch",
	Short: "Portfolio financial news sentiment tracker",
	Long: `newswatch scrapes recent financial news for a set of assets,
scores each article with an LLM (falling back to keyword scoring when
no provider is reachable), and aggregates the results into a
portfolio-level sentiment picture.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		log = logging.New(level, cfg.Logging.Format, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ~/.newswatch/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

// buildTracker wires the pipeline from the loaded config. A missing
// LLM setup degrades to keyword scoring instead of failing.
func buildTracker() (*tracker.Tracker, error) {
	searcher, err := search.New(cfg)
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	router, err := llm.NewRouterFromConfig(cfg)
	switch {
	case err == nil:
		provider = router
	case errors.Is(err, llm.ErrNoProviders):
		log.Warn("no LLM providers configured, scoring with keyword fallback")
	default:
		return nil, err
	}

	scraper := scrape.New(cfg, searcher, nil, log)
	an := analyzer.NewFromConfig(cfg, provider, log)

	tr := tracker.New(cfg, scraper, an, log)
	tr.RegisterPinger("search", searcher)
	if router != nil {
		tr.RegisterPinger("llm", router)
	}
	return tr, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newswatch %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze news sentiment for a portfolio of assets",
	Long: `Scrape and score recent news for the given assets.

Examples:
  newswatch analyze --assets AAPL,MSFT,TSLA
  newswatch analyze --assets BTC-USD --articles 10 --days 3 --format json
  newswatch analyze --assets AAPL --output report.csv
  newswatch analyze --test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if test, _ := cmd.Flags().GetBool("test"); test {
			return runConnectivityTest(cmd.Context())
		}

		rawAssets, _ := cmd.Flags().GetString("assets")
		articles, _ := cmd.Flags().GetInt("articles")
		days, _ := cmd.Flags().GetInt("days")
		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")

		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if rawAssets == "" {
			return fmt.Errorf("--assets is required (comma-separated, e.g. AAPL,MSFT)")
		}

		tr, err := buildTracker()
		if err != nil {
			return err
		}

		req := tracker.Request{
			Assets:      utils.SplitSymbols(rawAssets),
			MaxArticles: articles,
			DaysBack:    days,
		}
		if format == report.FormatSummary {
			req.Progress = func(asset, stage string, n int) {
				if stage == "scraping" {
					fmt.Fprintf(os.Stderr, "• %s: fetching news...\n", asset)
				}
			}
		}

		res, err := tr.AnalyzePortfolio(cmd.Context(), req)
		if err != nil {
			return err
		}

		if output != "" {
			if err := report.Save(output, res); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "saved report to %s\n", output)
		}
		return report.Write(os.Stdout, format, res)
	},
}

func init() {
	analyzeCmd.Flags().String("assets", "", "comma-separated asset symbols (e.g. AAPL,MSFT,BTC-USD)")
	analyzeCmd.Flags().Int("articles", 0, "max articles per asset (default from config)")
	analyzeCmd.Flags().Int("days", 0, "news recency window in days, 1-7 (default from config)")
	analyzeCmd.Flags().StringP("output", "o", "", "write the report to a file (.json, .csv, or text)")
	analyzeCmd.Flags().StringP("format", "f", "summary", "stdout format: json, csv, or summary")
	analyzeCmd.Flags().Bool("test", false, "test backend connectivity and exit")
}

func runConnectivityTest(ctx context.Context) error {
	tr, err := buildTracker()
	if err != nil {
		return err
	}

	fmt.Println("Testing backend connectivity...")
	failed := false
	for name, err := range tr.TestConnectivity(ctx) {
		if err != nil {
			fmt.Printf("  ❌ %-8s %v\n", name+":", err)
			failed = true
		} else {
			fmt.Printf("  ✅ %-8s ok\n", name+":")
		}
	}
	if failed {
		return fmt.Errorf("one or more backends are unreachable")
	}
	return nil
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  newswatch - System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:        %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:   %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    Search Backend: %s\n", cfg.Search.Provider)
		fmt.Printf("    Allowed Sites:  %s\n", strings.Join(cfg.Search.AllowedDomains, ", "))
		fmt.Printf("    API Server:     %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-18s %s\n", k.Name+":", status)
		}
		fmt.Println()

		fmt.Println("  Backends:")
		tr, err := buildTracker()
		if err != nil {
			return err
		}
		failed := false
		for name, err := range tr.TestConnectivity(cmd.Context()) {
			if err != nil {
				fmt.Printf("    ❌ %-12s %v\n", name+":", err)
				failed = true
			} else {
				fmt.Printf("    ✅ %-12s ok\n", name+":")
			}
		}
		fmt.Println("═══════════════════════════════════════")
		if failed {
			return fmt.Errorf("one or more backends are unreachable")
		}
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg, log)
		if err != nil {
			return err
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		log.Infof("starting newswatch API server on %s", addr)
		return srv.ListenAndServe(addr)
	},
}
