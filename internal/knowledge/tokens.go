package knowledge

import (
	"math"
	"strings"
)

// DefaultContextTokenBudget bounds how much retrieved context is folded into
// a prompt.
const DefaultContextTokenBudget = 4000

const truncationMarker = "\n\n[... content truncated ...]"

// TokenEstimator approximates token counts for budget decisions. Estimates
// are deliberately coarse: a cost-control heuristic, never a billing-accurate
// counter.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// CJKEstimator counts CJK characters at 1.5 tokens each and everything else
// by whitespace-separated words.
type CJKEstimator struct{}

func (CJKEstimator) EstimateTokens(text string) int {
	cjkCount := 0
	var latin strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
			latin.WriteRune(' ')
		} else {
			latin.WriteRune(r)
		}
	}

	words := 0
	for _, w := range strings.Fields(latin.String()) {
		if w != "" {
			words++
		}
	}

	return int(math.Ceil(float64(cjkCount)*1.5)) + words
}

func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

// OptimizeContext shrinks a context string to roughly maxTokens. Contexts
// already under budget pass through unchanged. Over-budget contexts are cut
// proportionally with a 10% safety margin, snapping backward to a sentence
// terminator when one falls in the last 20% of the cut region, and a
// truncation marker is appended.
func OptimizeContext(context string, maxTokens int, estimator TokenEstimator) string {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokenBudget
	}
	if estimator == nil {
		estimator = CJKEstimator{}
	}

	currentTokens := estimator.EstimateTokens(context)
	if currentTokens <= maxTokens {
		return context
	}

	runes := []rune(context)
	ratio := float64(maxTokens) / float64(currentTokens)
	targetLen := int(float64(len(runes)) * ratio * 0.9)
	if targetLen > len(runes) {
		targetLen = len(runes)
	}

	truncated := runes[:targetLen]

	lastEnd := -1
	for i, r := range truncated {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			lastEnd = i
		}
	}

	if lastEnd > int(float64(targetLen)*0.8) {
		truncated = truncated[:lastEnd+1]
	}

	return string(truncated) + truncationMarker
}
