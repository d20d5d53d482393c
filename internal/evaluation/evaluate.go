package evaluation

import (
	"log"

	"reviewbench/internal/domain"
)

type Options struct {
	ReferenceKey    string
	CandidateKey    string
	ConfidenceLevel float64
}

func DefaultOptions() Options {
	return Options{
		ReferenceKey:    DefaultReferenceKey,
		CandidateKey:    DefaultCandidateKey,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

func (o Options) withDefaults() Options {
	if o.ReferenceKey == "" {
		o.ReferenceKey = DefaultReferenceKey
	}
	if o.CandidateKey == "" {
		o.CandidateKey = DefaultCandidateKey
	}
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = DefaultConfidenceLevel
	}
	return o
}

// Evaluate aggregates records and attaches match rates and Wilson intervals.
// A category whose interval cannot be computed keeps a zero-width interval;
// the other categories are unaffected.
func Evaluate(records []domain.Record, opts Options) []domain.EvaluationResult {
	opts = opts.withDefaults()
	stats := Aggregate(records, opts.ReferenceKey, opts.CandidateKey)

	results := make([]domain.EvaluationResult, 0, len(stats))
	for _, s := range stats {
		results = append(results, resultFor(s, opts.ConfidenceLevel))
	}
	return results
}

func resultFor(s domain.CategoryBinStats, confidenceLevel float64) domain.EvaluationResult {
	result := domain.EvaluationResult{CategoryBinStats: s}
	if s.Total == 0 {
		return result
	}
	result.MatchRate = float64(s.Matched) / float64(s.Total)

	lower, upper, err := WilsonInterval(s.Matched, s.Total, confidenceLevel)
	if err != nil {
		log.Printf("evaluation interval error label=%s: %v", s.Label, err)
		return result
	}
	result.IntervalLower = lower
	result.IntervalUpper = upper
	return result
}

// ValidRecords is the number of records that landed in any category.
func ValidRecords(results []domain.EvaluationResult) int {
	n := 0
	for _, r := range results {
		n += r.Total
	}
	return n
}
