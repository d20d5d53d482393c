package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content == "" {
		t.Setenv("CONFIG_PATH", path)
		return
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadDefaults(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/benchmark/sample.json", cfg.DataPath)
	assert.Equal(t, "pre_score", cfg.ReferenceKey)
	assert.Equal(t, "score", cfg.CandidateKey)
	assert.Equal(t, "review_text", cfg.TextKey)
	assert.Equal(t, 0.95, cfg.ConfidenceLevel)
	assert.Equal(t, 0.70, cfg.StableLowerBound)
	assert.Equal(t, 0.50, cfg.UnstableUpperBound)
	assert.Equal(t, "./data/benchmark/result", cfg.ReportOutputDir)
	assert.Equal(t, "md", cfg.ReportExtension)
	assert.Equal(t, "./reviewbench.db", cfg.DBPath)
	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, 4, cfg.LLMConcurrency)
	assert.Equal(t, 3, cfg.LLMMaxRetries)
	assert.Equal(t, "*.json", cfg.DatasetPattern)
	assert.Equal(t, int(defaultExternalHTTPTimeout/time.Second), cfg.ExternalHTTPTimeoutSeconds)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.False(t, cfg.SlackConfigured())
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	useConfigFile(t, `
data_path: "yaml/reviews.json"
records_path: "data.items"
candidate_key: "llm_score"
confidence_level: 0.9
report_extension: ".txt"
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
slack_bot_token: "xoxb-yaml"
report_channel_id: "C123"
timezone: "America/Los_Angeles"
external_http_timeout_seconds: 75
`)
	t.Setenv("DATA_PATH", "env/reviews.jsonl")
	t.Setenv("CONFIDENCE_LEVEL", "0.99")
	t.Setenv("LLM_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env/reviews.jsonl", cfg.DataPath)
	assert.Equal(t, "data.items", cfg.RecordsPath)
	assert.Equal(t, "llm_score", cfg.CandidateKey)
	assert.Equal(t, 0.99, cfg.ConfidenceLevel)
	assert.Equal(t, "txt", cfg.ReportExtension)
	assert.Equal(t, 8, cfg.LLMConcurrency)
	assert.Equal(t, 75, cfg.ExternalHTTPTimeoutSeconds)
	assert.Equal(t, "America/Los_Angeles", cfg.Location.String())
	assert.True(t, cfg.SlackConfigured())
}

func TestLoadEmptyScheduleOverride(t *testing.T) {
	useConfigFile(t, `eval_schedule: "0 9 * * 1"`)
	t.Setenv("EVAL_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.EvalSchedule)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{name: "confidence level of one", env: map[string]string{"CONFIDENCE_LEVEL": "1"}, want: "confidence_level"},
		{name: "unparseable float", env: map[string]string{"CONFIDENCE_LEVEL": "high"}, want: "invalid CONFIDENCE_LEVEL"},
		{name: "unparseable int", env: map[string]string{"LLM_CONCURRENCY": "many"}, want: "invalid LLM_CONCURRENCY"},
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "cohere"}, want: "llm_provider"},
		{name: "short http timeout", env: map[string]string{"EXTERNAL_HTTP_TIMEOUT_SECONDS": "1"}, want: "external_http_timeout_seconds"},
		{name: "thresholds inverted", env: map[string]string{"STABLE_LOWER_BOUND": "0.4", "UNSTABLE_UPPER_BOUND": "0.6"}, want: "must not exceed"},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}, want: "invalid timezone"},
		{name: "bad extension", env: map[string]string{"REPORT_EXTENSION": "m/d"}, want: "report_extension"},
		{name: "missing default model", yaml: `default_model: "fast"`, want: "unknown model preset"},
		{name: "bad preset provider", yaml: "models:\n  fast:\n    provider: cohere\n", want: "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfigFile(t, tt.yaml)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestModelFor(t *testing.T) {
	warm := 0.7
	cfg := Config{
		LLMProvider:     ProviderAnthropic,
		LLMModel:        "claude-sonnet-4-5",
		LLMTemperature:  0,
		PromptPath:      "prompts/default.tmpl",
		AnthropicAPIKey: "ak",
		OpenAIAPIKey:    "ok",
		Models: map[string]ModelPreset{
			"gpt":  {Provider: ProviderOpenAI, Model: "gpt-4o-mini", Temperature: &warm},
			"bare": {},
		},
	}

	m, err := cfg.ModelFor("")
	require.NoError(t, err)
	assert.Equal(t, ModelConfig{Name: "default", Provider: ProviderAnthropic, Model: "claude-sonnet-4-5", PromptPath: "prompts/default.tmpl", APIKey: "ak"}, m)

	m, err = cfg.ModelFor("gpt")
	require.NoError(t, err)
	assert.Equal(t, "gpt", m.Name)
	assert.Equal(t, ProviderOpenAI, m.Provider)
	assert.Equal(t, "gpt-4o-mini", m.Model)
	assert.Equal(t, 0.7, m.Temperature)
	assert.Equal(t, "prompts/default.tmpl", m.PromptPath)
	assert.Equal(t, "ok", m.APIKey)

	m, err = cfg.ModelFor("bare")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", m.Model)

	cfg.DefaultModel = "gpt"
	m, err = cfg.ModelFor(" ")
	require.NoError(t, err)
	assert.Equal(t, "gpt", m.Name)

	_, err = cfg.ModelFor("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)

	cfg.OpenAIAPIKey = ""
	_, err = cfg.ModelFor("gpt")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoadKeepsExplicitZeroes(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		useConfigFile(t, "")
		t.Setenv("LLM_MAX_RETRIES", "0")
		t.Setenv("STABLE_LOWER_BOUND", "0")
		t.Setenv("UNSTABLE_UPPER_BOUND", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.LLMMaxRetries)
		assert.Equal(t, 0.0, cfg.StableLowerBound)
		assert.Equal(t, 0.0, cfg.UnstableUpperBound)
	})
	t.Run("yaml", func(t *testing.T) {
		useConfigFile(t, "llm_max_retries: 0\nunstable_upper_bound: 0\n")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.LLMMaxRetries)
		assert.Equal(t, 0.0, cfg.UnstableUpperBound)
		assert.Equal(t, 0.70, cfg.StableLowerBound)
	})
	t.Run("empty yaml value uses default", func(t *testing.T) {
		useConfigFile(t, "llm_max_retries:\n")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.LLMMaxRetries)
	})
}

func TestLoadDefaultUnstableBoundFollowsStableBound(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("STABLE_LOWER_BOUND", "0.4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.StableLowerBound)
	assert.Equal(t, 0.4, cfg.UnstableUpperBound)

	t.Setenv("STABLE_LOWER_BOUND", "0.8")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 0.50, cfg.UnstableUpperBound)
}
