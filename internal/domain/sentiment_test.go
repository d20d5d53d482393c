package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  SentimentLabel
	}{
		{score: 0.0, want: Negative},
		{score: 0.12, want: Negative},
		{score: 0.33, want: Negative},
		{score: math.Nextafter(1.0/3.0, 0), want: Negative},
		{score: 1.0 / 3.0, want: Neutral},
		{score: 0.34, want: Neutral},
		{score: 0.5, want: Neutral},
		{score: 0.66, want: Neutral},
		{score: math.Nextafter(2.0/3.0, 0), want: Neutral},
		{score: 2.0 / 3.0, want: Positive},
		{score: 0.67, want: Positive},
		{score: 0.95, want: Positive},
		{score: 1.0, want: Positive},
	}
	for _, tt := range tests {
		got, err := Bin(tt.score)
		require.NoError(t, err, "score=%v", tt.score)
		assert.Equal(t, tt.want, got, "Bin(%v)", tt.score)
	}
}

func TestBinRejectsOutOfRange(t *testing.T) {
	for _, score := range []float64{-0.0001, 1.0001, -1, 2, math.NaN(), math.Inf(1)} {
		_, err := Bin(score)
		assert.ErrorIs(t, err, ErrInvalidScore, "score=%v", score)
	}
}

func TestMustBinPanicsOnInvalidScore(t *testing.T) {
	assert.Panics(t, func() { MustBin(1.5) })
	assert.Equal(t, Neutral, MustBin(0.5))
}

func TestLabelsOrder(t *testing.T) {
	assert.Equal(t, []SentimentLabel{Negative, Neutral, Positive}, Labels[:])
	assert.True(t, Negative < Neutral && Neutral < Positive)
}

func TestParseSentimentLabel(t *testing.T) {
	for _, l := range Labels {
		parsed, err := ParseSentimentLabel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseSentimentLabel("Mixed")
	assert.Error(t, err)
}

func TestEvaluationResultJSONFieldNames(t *testing.T) {
	result := EvaluationResult{
		CategoryBinStats: CategoryBinStats{
			Label:                 Positive,
			Total:                 3,
			Matched:               2,
			CandidateDistribution: Distribution{0, 1, 2},
		},
		MatchRate:     2.0 / 3.0,
		IntervalLower: 0.2,
		IntervalUpper: 0.9,
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Positive", decoded["label"])
	assert.EqualValues(t, 3, decoded["total"])
	assert.EqualValues(t, 2, decoded["matched"])
	assert.Contains(t, decoded, "match_rate")
	assert.EqualValues(t, 0.2, decoded["interval_lower"])
	assert.EqualValues(t, 0.9, decoded["interval_upper"])
	assert.Equal(t, map[string]any{"negative": 0.0, "neutral": 1.0, "positive": 2.0}, decoded["candidate_distribution"])
}

func TestDistributionCountAndSum(t *testing.T) {
	d := Distribution{4, 5, 6}
	assert.Equal(t, 5, d.Count(Neutral))
	assert.Equal(t, 0, d.Count(SentimentLabel(7)))
	assert.Equal(t, 15, d.Sum())
}
