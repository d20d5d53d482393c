package llm

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"reviewbench/internal/domain"
)

const systemPrompt = `You are a customer review analyst. You rate how positive a review is and reply with a single JSON object and nothing else.`

const defaultPromptTemplate = `Rate the sentiment of the customer review below.

Return a JSON object with these fields:
- "score": a number from 0.00 to 1.00. 0.00 is entirely negative, 0.50 is neutral, 1.00 is entirely positive.
- "summary": one short sentence summarizing the review.
- "keywords": a list of the main keywords in the review.
- "reason": one sentence explaining the score.

Review:
"""
{{.Text}}
"""`

// promptData is what prompt templates see: the review text plus the whole
// record, so custom templates can reference other fields.
type promptData struct {
	Text   string
	Record domain.Record
}

func loadPrompt(path string) (*template.Template, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return template.New("default").Option("missingkey=zero").Parse(defaultPromptTemplate)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	tmpl, err := template.New(path).Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, text string, record domain.Record) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, promptData{Text: text, Record: record}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
