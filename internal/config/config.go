package config

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

var (
	ErrUnknownModel  = errors.New("unknown model preset")
	ErrMissingAPIKey = errors.New("missing LLM API key")
)

// ModelPreset is a named entry under `models:` in config.yaml. Empty fields
// fall back to the top-level llm_* settings.
type ModelPreset struct {
	Provider    string   `yaml:"provider" validate:"omitempty,oneof=anthropic openai"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	PromptPath  string   `yaml:"prompt_path"`
}

// ModelConfig is a fully resolved scorer configuration.
type ModelConfig struct {
	Name        string
	Provider    string
	Model       string
	Temperature float64
	PromptPath  string
	APIKey      string
}

type Config struct {
	DataPath        string  `yaml:"data_path" validate:"required"`
	RecordsPath     string  `yaml:"records_path"`
	ReferenceKey    string  `yaml:"reference_key" validate:"required"`
	CandidateKey    string  `yaml:"candidate_key" validate:"required"`
	TextKey         string  `yaml:"text_key" validate:"required"`
	ConfidenceLevel float64 `yaml:"confidence_level" validate:"gt=0,lt=1"`

	StableLowerBound   float64 `yaml:"stable_lower_bound" validate:"gte=0,lte=1"`
	UnstableUpperBound float64 `yaml:"unstable_upper_bound" validate:"gte=0,lte=1"`
	CandidateName      string  `yaml:"candidate_name"`
	ReportOutputDir    string  `yaml:"report_output_dir" validate:"required"`
	ReportExtension    string  `yaml:"report_extension" validate:"alphanum"`
	DBPath             string  `yaml:"db_path" validate:"required"`

	LLMProvider    string                 `yaml:"llm_provider" validate:"oneof=anthropic openai"`
	LLMModel       string                 `yaml:"llm_model"`
	LLMTemperature float64                `yaml:"llm_temperature" validate:"gte=0,lte=2"`
	LLMConcurrency int                    `yaml:"llm_concurrency" validate:"min=1,max=64"`
	LLMMaxRetries  int                    `yaml:"llm_max_retries" validate:"min=0,max=10"`
	PromptPath     string                 `yaml:"prompt_path"`
	DefaultModel   string                 `yaml:"default_model"`
	Models         map[string]ModelPreset `yaml:"models" validate:"dive"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	DatasetDir     string `yaml:"dataset_dir"`
	DatasetPattern string `yaml:"dataset_pattern" validate:"required"`
	EvalSchedule   string `yaml:"eval_schedule"`
	Timezone       string `yaml:"timezone"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds" validate:"min=5"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadConfig is Load for process startup: any error is fatal.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// Load reads config.yaml (or CONFIG_PATH), applies environment overrides and
// defaults, then validates the result.
func Load() (Config, error) {
	var cfg Config
	yamlKeys := map[string]bool{}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err == nil {
			for k, v := range raw {
				if v != nil {
					yamlKeys[k] = true
				}
			}
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.DataPath, "DATA_PATH")
	envOverride(&cfg.RecordsPath, "RECORDS_PATH")
	envOverride(&cfg.ReferenceKey, "REFERENCE_KEY")
	envOverride(&cfg.CandidateKey, "CANDIDATE_KEY")
	envOverride(&cfg.TextKey, "TEXT_KEY")
	envOverride(&cfg.CandidateName, "CANDIDATE_NAME")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.ReportExtension, "REPORT_EXTENSION")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.PromptPath, "PROMPT_PATH")
	envOverride(&cfg.DefaultModel, "DEFAULT_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.DatasetDir, "DATASET_DIR")
	envOverride(&cfg.DatasetPattern, "DATASET_PATTERN")
	envOverrideAllowEmpty(&cfg.EvalSchedule, "EVAL_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	err := errors.Join(
		envOverrideFloat(&cfg.ConfidenceLevel, "CONFIDENCE_LEVEL"),
		envOverrideFloat(&cfg.StableLowerBound, "STABLE_LOWER_BOUND"),
		envOverrideFloat(&cfg.UnstableUpperBound, "UNSTABLE_UPPER_BOUND"),
		envOverrideFloat(&cfg.LLMTemperature, "LLM_TEMPERATURE"),
		envOverrideInt(&cfg.LLMConcurrency, "LLM_CONCURRENCY"),
		envOverrideInt(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES"),
		envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"),
	)
	if err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg, func(yamlKey, envKey string) bool {
		return yamlKeys[yamlKey] || os.Getenv(envKey) != ""
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// applyDefaults fills unset values. isSet reports whether a key was given in
// YAML or the environment, for fields where zero is a valid setting.
func applyDefaults(cfg *Config, isSet func(yamlKey, envKey string) bool) {
	if cfg.DataPath == "" {
		cfg.DataPath = "data/benchmark/sample.json"
	}
	if cfg.ReferenceKey == "" {
		cfg.ReferenceKey = "pre_score"
	}
	if cfg.CandidateKey == "" {
		cfg.CandidateKey = "score"
	}
	if cfg.TextKey == "" {
		cfg.TextKey = "review_text"
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = 0.95
	}
	if !isSet("stable_lower_bound", "STABLE_LOWER_BOUND") {
		cfg.StableLowerBound = 0.70
	}
	// The default unstable bound never sits above an explicit stable bound.
	if !isSet("unstable_upper_bound", "UNSTABLE_UPPER_BOUND") {
		cfg.UnstableUpperBound = math.Min(0.50, cfg.StableLowerBound)
	}
	cfg.ReportExtension = strings.TrimPrefix(strings.TrimSpace(cfg.ReportExtension), ".")
	if cfg.ReportExtension == "" {
		cfg.ReportExtension = "md"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./data/benchmark/result"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./reviewbench.db"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = ProviderAnthropic
	}
	if cfg.LLMConcurrency == 0 {
		cfg.LLMConcurrency = 4
	}
	if !isSet("llm_max_retries", "LLM_MAX_RETRIES") {
		cfg.LLMMaxRetries = 3
	}
	if cfg.DatasetPattern == "" {
		cfg.DatasetPattern = "*.json"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

// Validate checks struct constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UnstableUpperBound > c.StableLowerBound {
		return fmt.Errorf("invalid config: unstable_upper_bound %.2f must not exceed stable_lower_bound %.2f", c.UnstableUpperBound, c.StableLowerBound)
	}
	if c.DefaultModel != "" {
		if _, ok := c.Models[c.DefaultModel]; !ok {
			return fmt.Errorf("invalid config: default_model %q: %w", c.DefaultModel, ErrUnknownModel)
		}
	}
	return nil
}

// ModelFor resolves a model preset by key. An empty key selects default_model,
// and without presets the top-level llm_* settings are used.
func (c Config) ModelFor(key string) (ModelConfig, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = c.DefaultModel
	}

	m := ModelConfig{
		Name:        "default",
		Provider:    c.LLMProvider,
		Model:       c.LLMModel,
		Temperature: c.LLMTemperature,
		PromptPath:  c.PromptPath,
	}
	if key != "" {
		preset, ok := c.Models[key]
		if !ok {
			return ModelConfig{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
		}
		m.Name = key
		if preset.Provider != "" {
			m.Provider = preset.Provider
		}
		if preset.Model != "" {
			m.Model = preset.Model
		}
		if preset.Temperature != nil {
			m.Temperature = *preset.Temperature
		}
		if preset.PromptPath != "" {
			m.PromptPath = preset.PromptPath
		}
	}

	switch m.Provider {
	case ProviderAnthropic:
		m.APIKey = c.AnthropicAPIKey
	case ProviderOpenAI:
		m.APIKey = c.OpenAIAPIKey
	default:
		return ModelConfig{}, fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", m.Provider)
	}
	if m.APIKey == "" {
		return ModelConfig{}, fmt.Errorf("%w: %s_api_key is required when provider=%s", ErrMissingAPIKey, m.Provider, m.Provider)
	}
	return m, nil
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
