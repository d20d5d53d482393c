package domain

import (
	"errors"
	"fmt"
	"math"
)

type SentimentLabel int

const (
	Negative SentimentLabel = iota
	Neutral
	Positive
)

// Labels is the fixed category order used by every result slice and report.
var Labels = [...]SentimentLabel{Negative, Neutral, Positive}

const (
	negativeUpperBound = 1.0 / 3.0
	neutralUpperBound  = 2.0 / 3.0
)

var ErrInvalidScore = errors.New("score must be between 0.0 and 1.0")

func (l SentimentLabel) String() string {
	switch l {
	case Negative:
		return "Negative"
	case Neutral:
		return "Neutral"
	case Positive:
		return "Positive"
	}
	return fmt.Sprintf("SentimentLabel(%d)", int(l))
}

// Short is the abbreviation used in distribution columns.
func (l SentimentLabel) Short() string {
	switch l {
	case Negative:
		return "N"
	case Neutral:
		return "Neu"
	case Positive:
		return "P"
	}
	return "?"
}

func (l SentimentLabel) Valid() bool {
	return l >= Negative && l <= Positive
}

func ParseSentimentLabel(s string) (SentimentLabel, error) {
	for _, l := range Labels {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown sentiment label %q", s)
}

func InRange(score float64) bool {
	return score >= 0 && score <= 1
}

// Bin maps a score in [0, 1] to its sentiment category. Lower bounds are
// inclusive, upper bounds exclusive except for 1.0.
func Bin(score float64) (SentimentLabel, error) {
	if math.IsNaN(score) || !InRange(score) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidScore, score)
	}
	switch {
	case score < negativeUpperBound:
		return Negative, nil
	case score < neutralUpperBound:
		return Neutral, nil
	default:
		return Positive, nil
	}
}

// MustBin is Bin for scores that were already range-checked.
func MustBin(score float64) SentimentLabel {
	label, err := Bin(score)
	if err != nil {
		panic(err)
	}
	return label
}
