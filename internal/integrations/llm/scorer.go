// Package llm scores review records with a hosted language model so that a
// dataset can be evaluated against human labels.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"reviewbench/internal/config"
	"reviewbench/internal/domain"
	"reviewbench/internal/evaluation"
	"reviewbench/internal/httpx"
)

const defaultRetryBase = 500 * time.Millisecond

type backend interface {
	complete(ctx context.Context, system, user string) (string, Usage, error)
}

// ScoreSummary tallies one ScoreRecords pass.
type ScoreSummary struct {
	Total   int
	Scored  int
	Skipped int
	Failed  int
	Usage   Usage
}

type Scorer struct {
	model       config.ModelConfig
	prompt      *template.Template
	backend     backend
	concurrency int
	maxRetries  uint64
	retryBase   time.Duration
}

// NewScorer builds a scorer for a resolved model preset.
func NewScorer(model config.ModelConfig, concurrency, maxRetries int) (*Scorer, error) {
	prompt, err := loadPrompt(model.PromptPath)
	if err != nil {
		return nil, err
	}

	var b backend
	switch model.Provider {
	case config.ProviderAnthropic:
		b = newAnthropicBackend(model.APIKey, model.Model, model.Temperature)
	case config.ProviderOpenAI:
		b = newOpenAIBackend(model.APIKey, model.Model, model.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", model.Provider)
	}

	return newScorer(model, prompt, b, concurrency, maxRetries), nil
}

func newScorer(model config.ModelConfig, prompt *template.Template, b backend, concurrency, maxRetries int) *Scorer {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Scorer{
		model:       model,
		prompt:      prompt,
		backend:     b,
		concurrency: concurrency,
		maxRetries:  uint64(maxRetries),
		retryBase:   defaultRetryBase,
	}
}

// Score asks the model for one review's sentiment, retrying transient failures.
func (s *Scorer) Score(ctx context.Context, text string, record domain.Record) (Analysis, Usage, error) {
	userPrompt, err := renderPrompt(s.prompt, text, record)
	if err != nil {
		return Analysis{}, Usage{}, err
	}

	var (
		analysis Analysis
		total    Usage
		attempt  int
	)
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		responseText, usage, err := s.backend.complete(ctx, systemPrompt, userPrompt)
		total.Add(usage)
		if err == nil {
			analysis, err = parseAnalysis(responseText)
		}
		if err != nil {
			if isRetryable(err) {
				log.Printf("llm score retry model=%s attempt=%d err=%v", s.model.Name, attempt, err)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	return analysis, total, err
}

// ScoreRecords fills candidateKey on every record that has review text but no
// valid candidate score. Records that still fail after retries are left
// unscored and counted in ScoreSummary.Failed.
func (s *Scorer) ScoreRecords(ctx context.Context, records []domain.Record, textKey, candidateKey string) (ScoreSummary, error) {
	summary := ScoreSummary{Total: len(records)}

	var pending []int
	for i, record := range records {
		if _, ok := reviewText(record, textKey); !ok || hasValidScore(record, candidateKey) {
			summary.Skipped++
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return summary, nil
	}

	limit := concurrencyLimit(len(pending), s.concurrency)
	log.Printf("llm score start model=%s provider=%s pending=%d concurrency=%d", s.model.Name, s.model.Provider, len(pending), limit)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, idx := range pending {
		idx := idx
		record := records[idx]
		text, _ := reviewText(record, textKey)
		g.Go(func() error {
			analysis, usage, err := s.Score(gctx, text, record)

			mu.Lock()
			defer mu.Unlock()
			summary.Usage.Add(usage)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				summary.Failed++
				log.Printf("llm score failed record=%d err=%v", idx, err)
				return nil
			}
			storeAnalysis(record, candidateKey, analysis)
			summary.Scored++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	log.Printf("llm score done model=%s scored=%d failed=%d skipped=%d tokens=%d", s.model.Name, summary.Scored, summary.Failed, summary.Skipped, summary.Usage.TotalTokens())
	return summary, nil
}

// AnalysisKeys lists the record fields a scoring pass may write for
// candidateKey: the score itself, then the summary, keywords and reason.
func AnalysisKeys(candidateKey string) []string {
	return []string{
		candidateKey,
		candidateKey + "_summary",
		candidateKey + "_keywords",
		candidateKey + "_reason",
	}
}

func storeAnalysis(record domain.Record, candidateKey string, a Analysis) {
	keys := AnalysisKeys(candidateKey)
	record[keys[0]] = a.Score
	if a.Summary != "" {
		record[keys[1]] = a.Summary
	}
	if len(a.Keywords) > 0 {
		record[keys[2]] = a.Keywords
	}
	if a.Reason != "" {
		record[keys[3]] = a.Reason
	}
}

func concurrencyLimit(total, configured int) int {
	if configured < 1 {
		configured = 1
	}
	if total < 1 {
		return 1
	}
	if total < configured {
		return total
	}
	return configured
}

func reviewText(record domain.Record, textKey string) (string, bool) {
	text, ok := record[textKey].(string)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func hasValidScore(record domain.Record, candidateKey string) bool {
	raw, ok := record[candidateKey]
	if !ok {
		return false
	}
	v, ok := evaluation.CoerceScore(raw)
	return ok && domain.InRange(v)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if status := anthropicStatus(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= 500
	}
	return true
}
