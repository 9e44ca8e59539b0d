// Package memory implements the Nexus memory engine: event and decision
// ingest with tier quotas, the log-mining and consolidation batch jobs,
// hybrid retrieval, and the context digest builder.
package memory

import (
	"math"
	"strings"
)

// decisionKeywords signal decision language, the strongest importance signal.
var decisionKeywords = []string{
	"recommend", "suggest", "decide", "chose", "selected", "will use", "going with",
	"strategy", "plan", "approach", "solution", "resolved", "concluded", "agreed",
	"determined", "confirmed", "approved", "rejected",
}

// highValueKeywords signal high-stakes business content.
var highValueKeywords = []string{
	"important", "critical", "urgent", "deadline", "budget", "contract", "deal",
	"launch", "release", "migration", "issue", "problem", "blocked", "risk",
	"security", "compliance", "legal", "revenue", "customer",
}

// feedbackMarkers are positive-feedback phrasings worth a small fixed bonus.
var feedbackMarkers = []string{
	"thank", "great", "perfect", "exactly", "confirmed", "approved", "works",
}

// ScoreImportance estimates how valuable a piece of conversation content is,
// on a 0..1 scale. Used as the fallback when the extraction service does not
// supply its own estimate. Deterministic: same text, same score.
func ScoreImportance(text string) float64 {
	score := 0.3 // base

	lower := strings.ToLower(text)

	decisionHits := 0
	for _, k := range decisionKeywords {
		if strings.Contains(lower, k) {
			decisionHits++
		}
	}
	score += math.Min(float64(decisionHits)*0.08, 0.3)

	highValueHits := 0
	for _, k := range highValueKeywords {
		if strings.Contains(lower, k) {
			highValueHits++
		}
	}
	score += math.Min(float64(highValueHits)*0.05, 0.15)

	// Longer content tends to be more meaningful, with diminishing returns.
	wordCount := len(strings.Fields(text))
	score += math.Min(math.Log10(float64(wordCount+1))/5, 0.1)

	if strings.Contains(lower, "?") {
		score += 0.05
	}

	for _, m := range feedbackMarkers {
		if strings.Contains(lower, m) {
			score += 0.05
			break
		}
	}

	return math.Min(score, 1.0)
}
