package report

import (
	"fmt"

	"reviewbench/internal/domain"
)

// SummaryLines condenses each category to one line for consoles and chat.
func SummaryLines(results []domain.EvaluationResult) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("Human Sentiment Bin: %-10s | Total: %-5d | Matched: %-5d | Match Rate: %s | Wilson CI: %s | Candidate Dist: %s",
			r.Label, r.Total, r.Matched, formatRate(r.MatchRate), formatInterval(r), formatDistribution(r.CandidateDistribution)))
	}
	return lines
}
