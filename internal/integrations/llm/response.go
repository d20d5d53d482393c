package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrBadResponse = errors.New("unusable LLM response")

// Analysis is the model's verdict on one review.
type Analysis struct {
	Score    float64
	Summary  string
	Reason   string
	Keywords []string
}

func parseAnalysis(responseText string) (Analysis, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	if !gjson.Valid(responseText) {
		return Analysis{}, fmt.Errorf("%w: not JSON (response: %s)", ErrBadResponse, truncate(responseText, 200))
	}
	doc := gjson.Parse(responseText)
	if !doc.IsObject() {
		return Analysis{}, fmt.Errorf("%w: expected a JSON object", ErrBadResponse)
	}

	score := doc.Get("score")
	if score.Type != gjson.Number {
		return Analysis{}, fmt.Errorf("%w: score missing or not a number", ErrBadResponse)
	}
	if score.Float() < 0 || score.Float() > 1 {
		return Analysis{}, fmt.Errorf("%w: score %v outside [0, 1]", ErrBadResponse, score.Float())
	}

	a := Analysis{
		Score:   score.Float(),
		Summary: strings.TrimSpace(doc.Get("summary").String()),
		Reason:  strings.TrimSpace(doc.Get("reason").String()),
	}
	if a.Reason == "" {
		a.Reason = strings.TrimSpace(doc.Get("analysis_score").String())
	}
	for _, kw := range doc.Get("keywords").Array() {
		if s := strings.TrimSpace(kw.String()); s != "" {
			a.Keywords = append(a.Keywords, s)
		}
	}
	return a, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
