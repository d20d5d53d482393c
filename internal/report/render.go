package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"reviewbench/internal/domain"
)

const (
	DefaultStableLowerBound   = 0.70
	DefaultUnstableUpperBound = 0.50
	DefaultExtension          = "md"
)

// Thresholds drive the qualitative note attached to each interval.
type Thresholds struct {
	Stable   float64 // interval lower bound above this reads as stable
	Unstable float64 // interval upper bound below this reads as unstable
}

func DefaultThresholds() Thresholds {
	return Thresholds{Stable: DefaultStableLowerBound, Unstable: DefaultUnstableUpperBound}
}

type Options struct {
	ConfidenceLevel float64
	Thresholds      Thresholds
	Extension       string
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = 0.95
	}
	if o.Thresholds == (Thresholds{}) {
		o.Thresholds = DefaultThresholds()
	}
	if strings.TrimPrefix(o.Extension, ".") == "" {
		o.Extension = DefaultExtension
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Rendered struct {
	Text     string
	FileName string
}

// Render builds the Markdown report and its suggested file name. It does no I/O.
func Render(results []domain.EvaluationResult, datasetName, candidateName string, opts Options) Rendered {
	opts = opts.withDefaults()
	now := opts.Now()
	level := formatLevel(opts.ConfidenceLevel)

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("# %s Evaluation Report for %s\n", candidateName, datasetName))
	buf.WriteString(fmt.Sprintf("Generated on: %s\n\n", now.Format("2006-01-02 15:04:05")))
	buf.WriteString("---\n")

	buf.WriteString("## 1. Evaluation Summary\n")
	buf.WriteString(fmt.Sprintf("| Human Sentiment Bin | Total Reviews | Matched Reviews | Match Rate | Wilson CI (%s) | %s Prediction Distribution (N, Neu, P) |\n", level, candidateName))
	buf.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range results {
		buf.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
			r.Label, r.Total, r.Matched, formatRate(r.MatchRate), formatInterval(r), formatDistribution(r.CandidateDistribution)))
	}
	buf.WriteString("\n")

	buf.WriteString("## 2. Detailed Analysis by Human Sentiment Category\n")
	for i, r := range results {
		writeCategorySection(&buf, i+1, r, candidateName, level, opts.Thresholds)
		buf.WriteString("\n")
	}

	return Rendered{
		Text:     strings.TrimRight(buf.String(), "\n") + "\n",
		FileName: ReportFileName(datasetName, candidateName, now, opts.Extension),
	}
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

func formatInterval(r domain.EvaluationResult) string {
	return fmt.Sprintf("(%.3f, %.3f)", r.IntervalLower, r.IntervalUpper)
}

func formatDistribution(d domain.Distribution) string {
	parts := make([]string, 0, len(domain.Labels))
	for _, l := range domain.Labels {
		parts = append(parts, fmt.Sprintf("%s: %d", l.Short(), d.Count(l)))
	}
	return strings.Join(parts, ", ")
}

// formatLevel renders 0.95 as "95%" and 0.975 as "97.5%".
func formatLevel(confidenceLevel float64) string {
	pct := math.Round(confidenceLevel*10000) / 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}
