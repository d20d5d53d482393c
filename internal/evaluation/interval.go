package evaluation

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidInterval = errors.New("invalid interval arguments")

// WilsonInterval returns the Wilson score interval for matched/total at the
// given confidence level. An empty category yields (0, 0).
func WilsonInterval(matched, total int, confidenceLevel float64) (float64, float64, error) {
	if !(confidenceLevel > 0 && confidenceLevel < 1) {
		return 0, 0, fmt.Errorf("%w: confidence level %v not in (0, 1)", ErrInvalidInterval, confidenceLevel)
	}
	if total < 0 || matched < 0 || matched > total {
		return 0, 0, fmt.Errorf("%w: matched=%d total=%d", ErrInvalidInterval, matched, total)
	}
	if total == 0 {
		return 0, 0, nil
	}

	z := zScore(confidenceLevel)
	n := float64(total)
	p := float64(matched) / n
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	half := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	lower := clamp01(center - half)
	upper := clamp01(center + half)

	// Exact at the extremes, and always containing p.
	if matched == 0 {
		lower = 0
	}
	if matched == total {
		upper = 1
	}
	lower = math.Min(lower, p)
	upper = math.Max(upper, p)
	return lower, upper, nil
}

// zScore is the two-sided standard normal quantile for a confidence level.
func zScore(confidenceLevel float64) float64 {
	return math.Sqrt2 * math.Erfinv(confidenceLevel)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
