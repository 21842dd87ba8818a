// Package config handles configuration loading for newswatch.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Limits  LimitsConfig  `mapstructure:"limits"  yaml:"limits"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig holds LLM provider configuration for article analysis.
type LLMConfig struct {
	Primary     string  `mapstructure:"primary"      yaml:"primary"` // "openai" or "ollama"
	OpenAIKey   string  `mapstructure:"openai_key"   yaml:"openai_key"`
	OpenAIURL   string  `mapstructure:"openai_url"   yaml:"openai_url"` // override for OpenAI-compatible endpoints
	OllamaURL   string  `mapstructure:"ollama_url"   yaml:"ollama_url"`
	Model       string  `mapstructure:"model"        yaml:"model"`
	Temperature float64 `mapstructure:"temperature"  yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"   yaml:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec"  yaml:"timeout_sec"` // per-article analysis deadline

	// RequestDelayMS paces LLM calls; 0 disables pacing.
	RequestDelayMS int `mapstructure:"request_delay_ms" yaml:"request_delay_ms"`
}

// SearchConfig holds news search backend settings.
type SearchConfig struct {
	Provider       string   `mapstructure:"provider"          yaml:"provider"` // "ddg" or "rss"
	AllowedDomains []string `mapstructure:"allowed_domains"   yaml:"allowed_domains"`
	RequestDelayMS int      `mapstructure:"request_delay_ms"  yaml:"request_delay_ms"`
	CacheTTLSec    int      `mapstructure:"cache_ttl_sec"     yaml:"cache_ttl_sec"`
	EnrichArticles bool     `mapstructure:"enrich_articles"   yaml:"enrich_articles"` // fetch pages for missing descriptions
}

// LimitsConfig bounds the size of an analysis request.
type LimitsConfig struct {
	MaxAssets       int `mapstructure:"max_assets"        yaml:"max_assets"`
	DefaultArticles int `mapstructure:"default_articles"  yaml:"default_articles"`
	MaxArticles     int `mapstructure:"max_articles"      yaml:"max_articles"`
	MinDaysBack     int `mapstructure:"min_days_back"     yaml:"min_days_back"`
	MaxDaysBack     int `mapstructure:"max_days_back"     yaml:"max_days_back"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"          yaml:"host"`
	Port        int      `mapstructure:"port"          yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"  yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.newswatch/config.yaml (home directory)
//  3. /etc/newswatch/config.yaml (system)
//
// Environment variables override config file values.
// Format: NEWSWATCH_<SECTION>_<KEY>, e.g., NEWSWATCH_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".newswatch"))
	v.AddConfigPath("/etc/newswatch")

	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// DefaultAllowedDomains is the curated list of financial news sources
// the scraper accepts articles from.
var DefaultAllowedDomains = []string{
	"bloomberg.com",
	"cnbc.com",
	"reuters.com",
	"marketwatch.com",
	"finance.yahoo.com",
	"wsj.com",
	"ft.com",
	"barrons.com",
	"investing.com",
	"seekingalpha.com",
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout_sec", 60)
	v.SetDefault("llm.request_delay_ms", 0)

	// Search defaults
	v.SetDefault("search.provider", "ddg")
	v.SetDefault("search.allowed_domains", DefaultAllowedDomains)
	v.SetDefault("search.request_delay_ms", 1000)
	v.SetDefault("search.cache_ttl_sec", 600) // 10 minutes
	v.SetDefault("search.enrich_articles", false)

	// Request limits
	v.SetDefault("limits.max_assets", 10)
	v.SetDefault("limits.default_articles", 5)
	v.SetDefault("limits.max_articles", 20)
	v.SetDefault("limits.min_days_back", 1)
	v.SetDefault("limits.max_days_back", 7)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("NEWSWATCH_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	// Accept the conventional variable as well so the binary works in
	// environments that already export it.
	if cfg.LLM.OpenAIKey == "" {
		cfg.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
