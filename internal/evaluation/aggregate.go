// Package evaluation compares human reference scores with candidate (LLM)
// scores per sentiment category and attaches Wilson confidence intervals to
// the agreement rate of each category.
package evaluation

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"reviewbench/internal/domain"
)

const (
	DefaultReferenceKey    = "pre_score"
	DefaultCandidateKey    = "score"
	DefaultConfidenceLevel = 0.95
)

// Aggregate bins the reference and candidate score of every record and
// cross-tabulates them by reference category. Records with a missing,
// non-numeric or out-of-range score are skipped. The result always holds one
// entry per label in domain.Labels order.
func Aggregate(records []domain.Record, referenceKey, candidateKey string) []domain.CategoryBinStats {
	stats := make([]domain.CategoryBinStats, len(domain.Labels))
	for i, label := range domain.Labels {
		stats[i] = domain.CategoryBinStats{Label: label}
	}

	skipped := 0
	for i, record := range records {
		pair, reason, ok := scoredPairFrom(record, referenceKey, candidateKey)
		if !ok {
			skipped++
			log.Printf("evaluation skip record=%d reason=%q", i, reason)
			continue
		}
		refLabel := domain.MustBin(pair.ReferenceScore)
		candLabel := domain.MustBin(pair.CandidateScore)

		bin := &stats[refLabel]
		bin.Total++
		bin.CandidateDistribution[candLabel]++
		if refLabel == candLabel {
			bin.Matched++
		}
	}
	if skipped > 0 {
		log.Printf("evaluation aggregated records=%d skipped=%d", len(records)-skipped, skipped)
	}
	return stats
}

// scoredPairFrom returns the pair for a record, or ok=false with a reason when
// the record cannot take part in the evaluation.
func scoredPairFrom(record domain.Record, referenceKey, candidateKey string) (domain.ScoredPair, string, bool) {
	ref, reason, ok := scoreField(record, referenceKey)
	if !ok {
		return domain.ScoredPair{}, reason, false
	}
	cand, reason, ok := scoreField(record, candidateKey)
	if !ok {
		return domain.ScoredPair{}, reason, false
	}
	return domain.ScoredPair{ReferenceScore: ref, CandidateScore: cand}, "", true
}

func scoreField(record domain.Record, key string) (float64, string, bool) {
	raw, present := record[key]
	if !present {
		return 0, fmt.Sprintf("missing %s", key), false
	}
	score, ok := CoerceScore(raw)
	if !ok {
		return 0, fmt.Sprintf("%s is not numeric: %v", key, raw), false
	}
	if math.IsNaN(score) || !domain.InRange(score) {
		return 0, fmt.Sprintf("%s out of range: %v", key, score), false
	}
	return score, "", true
}

// CoerceScore accepts JSON numbers, Go numeric kinds and numeric strings.
func CoerceScore(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
