package openai

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minScore = 0.0
	maxScore = 10.0
)

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// parseScore extracts the first number from a model reply and clamps it to
// [minScore, maxScore]. Replies without a number score minScore.
func parseScore(text string) float64 {
	match := scorePattern.FindString(strings.TrimSpace(text))
	if match == "" {
		return minScore
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return minScore
	}
	return min(maxScore, max(minScore, score))
}
