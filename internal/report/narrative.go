package report

import (
	"fmt"
	"strings"

	"reviewbench/internal/domain"
)

func writeCategorySection(buf *strings.Builder, index int, r domain.EvaluationResult, candidate, level string, th Thresholds) {
	label := r.Label.String()
	buf.WriteString(fmt.Sprintf("### 2.%d. Reviews rated '%s' by humans\n", index, label))
	buf.WriteString(fmt.Sprintf("- **Total reviews**: %d\n", r.Total))
	if r.Total == 0 {
		buf.WriteString(fmt.Sprintf("  - No reviews in this dataset were rated '%s' by humans.\n", label))
		return
	}

	rate := formatRate(r.MatchRate)
	buf.WriteString(fmt.Sprintf("  - *Interpretation*: %d of the evaluated reviews were rated '%s' by humans.\n", r.Total, label))
	buf.WriteString(fmt.Sprintf("- **Matched reviews**: %d\n", r.Matched))
	buf.WriteString(fmt.Sprintf("  - *Interpretation*: Of these %d '%s' reviews, %s also rated %d as '%s'.\n", r.Total, label, candidate, r.Matched, label))
	buf.WriteString(fmt.Sprintf("- **Match rate**: %s\n", rate))
	buf.WriteString(fmt.Sprintf("  - *Interpretation*: For reviews humans rated '%s', %s gives the same category about %s of the time.\n", label, candidate, rate))
	buf.WriteString(fmt.Sprintf("- **Wilson confidence interval (%s)**: %s\n", level, formatInterval(r)))
	buf.WriteString(fmt.Sprintf("  - *Interpretation*: At the %s confidence level, the true match rate of %s on '%s' reviews is estimated to lie between %.1f%% and %.1f%%.\n",
		level, candidate, label, r.IntervalLower*100, r.IntervalUpper*100))
	buf.WriteString("    - *Note*: " + stabilityNote(r, th) + "\n")

	buf.WriteString(fmt.Sprintf("- **%s prediction distribution for reviews humans rated '%s'**:\n", candidate, label))
	for _, l := range domain.Labels {
		buf.WriteString(fmt.Sprintf("  - Predicted %s (%s): %d\n", l, l.Short(), r.CandidateDistribution.Count(l)))
	}
	buf.WriteString("  - *Misclassification analysis*: " + misclassificationNote(r, candidate) + "\n")
}

func stabilityNote(r domain.EvaluationResult, th Thresholds) string {
	switch {
	case r.IntervalLower > th.Stable:
		return "The lower bound of the interval is relatively high, so performance on this category is stable."
	case r.IntervalUpper < th.Unstable:
		return "The upper bound of the interval is relatively low, so performance on this category is unstable and needs improvement."
	default:
		return "The interval shows the plausible range of the true match rate. A wide interval means sample size or variability leaves considerable uncertainty."
	}
}

func misclassificationNote(r domain.EvaluationResult, candidate string) string {
	label := r.Label.String()
	var parts []string
	for _, l := range domain.Labels {
		if l == r.Label {
			continue
		}
		if n := r.CandidateDistribution.Count(l); n > 0 {
			parts = append(parts, fmt.Sprintf("%d as %s (%s)", n, l, direction(r.Label, l)))
		}
	}
	switch {
	case len(parts) > 0:
		return fmt.Sprintf("When %s misclassified reviews humans rated '%s', it rated %s.", candidate, label, strings.Join(parts, "; "))
	case r.Matched == r.Total:
		return fmt.Sprintf("%s classified every review humans rated '%s' correctly.", candidate, label)
	default:
		return "No misclassification pattern beyond direct matches was observed for this category."
	}
}

// direction describes a predicted category relative to the actual one. A
// two-step jump across the scale is reported as "much" more.
func direction(actual, predicted domain.SentimentLabel) string {
	steps := int(predicted) - int(actual)
	tone := "positive"
	if steps < 0 {
		tone = "negative"
		steps = -steps
	}
	if steps > 1 {
		return "much more " + tone + " than actual"
	}
	return "more " + tone + " than actual"
}
