// Package commentary scores commentary utterances for "energy" and records
// them against their session's log for downstream highlight detection.
package commentary

import "strings"

// EnergyThreshold separates highlight candidates from ordinary commentary.
// The comparison is strict: an entry is a highlight iff energy > threshold.
const EnergyThreshold = 0.75

// Canonical hype phrases. Any case-insensitive match short-circuits scoring,
// so these always land above EnergyThreshold regardless of punctuation.
var highlightKeywords = []string{
	"INCREDIBLE",
	"UNBELIEVABLE",
	"WHAT A SHOT",
	"OH MY",
	"ARE YOU KIDDING",
	"AMAZING",
	"SPECTACULAR",
	"WOW",
}

const keywordScore = 0.95

// Score estimates how exciting an utterance is, in [0.0, 1.0]. It is a pure
// function: same text, same score.
func Score(text string) float64 {
	if text == "" {
		return 0.0
	}

	upper := strings.ToUpper(text)
	for _, kw := range highlightKeywords {
		if strings.Contains(upper, kw) {
			return keywordScore
		}
	}

	// Non-keyword lines: exclamation marks and length both signal hype, with
	// capped contributions so the score stays additive and bounded.
	bangs := strings.Count(upper, "!")
	if bangs > 3 {
		bangs = 3
	}
	lengthBonus := float64(len(upper)) / 120.0
	if lengthBonus > 0.3 {
		lengthBonus = 0.3
	}
	score := 0.2 + float64(bangs)*0.1 + lengthBonus
	if score > 1.0 {
		return 1.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}

// IsHighlight reports whether an energy level crosses the highlight threshold.
func IsHighlight(energy float64) bool {
	return energy > EnergyThreshold
}
