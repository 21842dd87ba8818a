// Package utils holds small helpers shared across newswatch packages.
package utils

import (
	"regexp"
	"strings"
)

// symbolPattern matches normalized ticker symbols, including index
// (^GSPC), class-share (BRK.B) and ampersand (M&M) forms.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^&-]{1,12}$`)

// Common aliases people type instead of the listed ticker.
var symbolAliases = map[string]string{
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"AMAZON":    "AMZN",
	"TESLA":     "TSLA",
	"NVIDIA":    "NVDA",
	"META":      "META",
	"FACEBOOK":  "META",
	"NETFLIX":   "NFLX",
	"BERKSHIRE": "BRK.B",
	"SP500":     "^GSPC",
	"S&P500":    "^GSPC",
	"NASDAQ":    "^IXIC",
	"DOW":       "^DJI",
	"BITCOIN":   "BTC-USD",
	"BTC":       "BTC-USD",
	"ETHEREUM":  "ETH-USD",
	"ETH":       "ETH-USD",
}

// NormalizeSymbol uppercases and trims a user-supplied asset symbol and
// resolves well-known aliases to their listed ticker.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if canonical, ok := symbolAliases[s]; ok {
		return canonical
	}
	return s
}

// ValidSymbol reports whether s is an acceptable normalized symbol.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// SplitSymbols parses a comma-separated asset list into normalized
// symbols, dropping empty items and duplicates while keeping order.
func SplitSymbols(list string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(list, ",") {
		sym := NormalizeSymbol(part)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
