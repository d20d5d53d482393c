package domain

import "encoding/json"

// Record is one raw evaluation row as decoded from the dataset.
type Record map[string]any

type ScoredPair struct {
	ReferenceScore float64
	CandidateScore float64
}

// Distribution counts candidate labels, indexed by SentimentLabel.
type Distribution [len(Labels)]int

func (d Distribution) Count(l SentimentLabel) int {
	if !l.Valid() {
		return 0
	}
	return d[l]
}

func (d Distribution) Sum() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Negative int `json:"negative"`
		Neutral  int `json:"neutral"`
		Positive int `json:"positive"`
	}{d[Negative], d[Neutral], d[Positive]})
}

// CategoryBinStats accumulates the records whose reference score falls in Label.
type CategoryBinStats struct {
	Label                 SentimentLabel `json:"label"`
	Total                 int            `json:"total"`
	Matched               int            `json:"matched"`
	CandidateDistribution Distribution   `json:"candidate_distribution"`
}

// Mismatched is the number of records whose candidate landed in another category.
func (s CategoryBinStats) Mismatched() int {
	return s.Total - s.Matched
}

type EvaluationResult struct {
	CategoryBinStats
	MatchRate     float64 `json:"match_rate"`
	IntervalLower float64 `json:"interval_lower"`
	IntervalUpper float64 `json:"interval_upper"`
}

func (l SentimentLabel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *SentimentLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseSentimentLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
