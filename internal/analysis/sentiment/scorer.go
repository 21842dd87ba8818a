// Package sentiment implements the deterministic keyword scorer used
// when no LLM backend is reachable. It is offline and fast, at the
// cost of nuance, so entries it produces carry a fixed low confidence.
package sentiment

import (
	"strings"

	"github.com/seenimoa/newswatch/pkg/models"
)

// FallbackConfidence is the confidence recorded on every entry scored
// by this heuristic instead of the LLM.
const FallbackConfidence = 0.3

// neutralBand is the score magnitude below which a text is labeled
// neutral. Keeps weak single-keyword matches from flipping the label.
const neutralBand = 0.15

// positive / negative keyword dictionaries (lowercase).
var positiveWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "surge": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5,
	"exceeds": 0.5, "beats estimate": 0.6, "expansion": 0.4,
	"profit": 0.3, "dividend": 0.4, "gain": 0.4, "soar": 0.7,
}

var negativeWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "slump": 0.6,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "loss": 0.4,
	"selloff": 0.7, "fall": 0.4, "correction": 0.5, "recall": 0.5,
	"default": 0.7, "fraud": 0.8, "lawsuit": 0.6, "investigation": 0.5,
	"cut": 0.3, "miss": 0.5, "warning": 0.5, "concern": 0.3,
}

// ScoreText returns a keyword sentiment score for a text in -1..+1 and
// the number of dictionary matches it is based on.
func ScoreText(text string) (score float64, matches int) {
	lower := strings.ToLower(text)

	posScore := 0.0
	negScore := 0.0

	for word, weight := range positiveWords {
		if strings.Contains(lower, word) {
			posScore += weight
			matches++
		}
	}
	for word, weight := range negativeWords {
		if strings.Contains(lower, word) {
			negScore += weight
			matches++
		}
	}

	if matches == 0 {
		return 0, 0
	}

	total := posScore + negScore
	if total == 0 {
		return 0, matches
	}

	// Net score normalized to -1..+1.
	return (posScore - negScore) / total, matches
}

// Classify scores an article's title and description and maps the
// result onto a sentiment label and impact. Scores within the neutral
// band stay neutral, so the label and impact sign always agree.
func Classify(title, description string) (models.Sentiment, float64) {
	text := title
	if description != "" {
		text += " " + description
	}

	score, matches := ScoreText(text)
	if matches == 0 {
		return models.SentimentNeutral, 0
	}

	switch {
	case score > neutralBand:
		return models.SentimentPositive, score
	case score < -neutralBand:
		return models.SentimentNegative, score
	default:
		return models.SentimentNeutral, score
	}
}
