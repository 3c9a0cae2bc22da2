package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"casebrief-backend/llm"
	"casebrief-backend/storage"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the process configuration
type Config struct {
	Port        string `validate:"required"`
	StoreType   string `validate:"oneof=postgres badger"`
	DatabaseURL string `validate:"required_if=StoreType postgres"`
	BadgerPath  string

	LLMBackend      string `validate:"oneof=gemini openai anthropic"`
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	OTLPEndpoint string

	Storage  storage.Config
	Pipeline PipelineConfig
}

// PipelineConfig tunes the brief pipeline. It may be overlaid from a YAML file.
type PipelineConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" validate:"min=1"`
	Temperature       float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	BriefMaxTokens    int           `yaml:"brief_max_tokens" validate:"min=1"`
	DetailedMaxTokens int           `yaml:"detailed_max_tokens" validate:"min=1"`
	VerifyMaxTokens   int           `yaml:"verify_max_tokens" validate:"min=1"`
	CompletionTimeout time.Duration `yaml:"completion_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ApplyCorrections  bool          `yaml:"apply_corrections"`
	SweepSchedule     string        `yaml:"sweep_schedule"`
	SweepBatch        int           `yaml:"sweep_batch" validate:"min=1"`
}

// DefaultPipeline returns the pipeline settings used when nothing is configured
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		MaxAttempts:       2,
		Temperature:       0.7,
		BriefMaxTokens:    1024,
		DetailedMaxTokens: 3072,
		VerifyMaxTokens:   512,
		CompletionTimeout: 60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SweepBatch:        20,
	}
}

// LoadDotEnv loads .env from the working directory or the project root
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}
}

// Load reads .env, the environment and the optional BRIEF_CONFIG_FILE overlay
func Load() (*Config, error) {
	LoadDotEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:            stringOr(getenv("PORT"), "8080"),
		StoreType:       stringOr(getenv("STORE_TYPE"), "badger"),
		DatabaseURL:     getenv("DATABASE_URL"),
		BadgerPath:      getenv("BADGER_PATH"),
		LLMBackend:      stringOr(getenv("LLM_BACKEND"), llm.BackendGemini),
		GeminiAPIKey:    getenv("GEMINI_API_KEY"),
		GeminiModel:     getenv("GEMINI_MODEL"),
		OpenAIAPIKey:    getenv("OPENAI_API_KEY"),
		OpenAIModel:     getenv("OPENAI_MODEL"),
		AnthropicAPIKey: getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getenv("ANTHROPIC_MODEL"),
		OTLPEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Storage: storage.Config{
			Type:         storage.Type(stringOr(getenv("STORAGE_TYPE"), string(storage.TypeLocal))),
			LocalPath:    stringOr(getenv("STORAGE_LOCAL_PATH"), "./storage/files"),
			S3Bucket:     getenv("AWS_S3_BUCKET"),
			S3Region:     stringOr(getenv("AWS_REGION"), "us-east-1"),
			AWSAccessKey: getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: getenv("AWS_SECRET_ACCESS_KEY"),
		},
		Pipeline: DefaultPipeline(),
	}

	p := &cfg.Pipeline
	var errs []error
	setInt(getenv, "BRIEF_MAX_ATTEMPTS", &p.MaxAttempts, &errs)
	setInt(getenv, "BRIEF_MAX_TOKENS", &p.BriefMaxTokens, &errs)
	setInt(getenv, "DETAILED_MAX_TOKENS", &p.DetailedMaxTokens, &errs)
	setInt(getenv, "VERIFY_MAX_TOKENS", &p.VerifyMaxTokens, &errs)
	setInt(getenv, "SWEEP_BATCH", &p.SweepBatch, &errs)
	setDuration(getenv, "COMPLETION_TIMEOUT", &p.CompletionTimeout, &errs)
	setDuration(getenv, "WRITE_TIMEOUT", &p.WriteTimeout, &errs)
	if v := getenv("BRIEF_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("BRIEF_TEMPERATURE: %w", err))
		}
		p.Temperature = float32(f)
	}
	if v := getenv("APPLY_CORRECTIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("APPLY_CORRECTIONS: %w", err))
		}
		p.ApplyCorrections = b
	}
	p.SweepSchedule = getenv("SWEEP_SCHEDULE")

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	if path := getenv("BRIEF_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies pipeline settings from a YAML file. Keys absent from
// the file keep their env or default values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var doc struct {
		Pipeline PipelineConfig `yaml:"pipeline"`
	}
	doc.Pipeline = c.Pipeline
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	c.Pipeline = doc.Pipeline
	return nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LLM returns the completion backend settings for the selected backend
func (c *Config) LLM() llm.Config {
	switch c.LLMBackend {
	case llm.BackendOpenAI:
		return llm.Config{Backend: c.LLMBackend, APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel}
	case llm.BackendAnthropic:
		return llm.Config{Backend: c.LLMBackend, APIKey: c.AnthropicAPIKey, Model: c.AnthropicModel}
	default:
		return llm.Config{Backend: llm.BackendGemini, APIKey: c.GeminiAPIKey, Model: c.GeminiModel}
	}
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func setInt(getenv func(string) string, key string, dst *int, errs *[]error) {
	v := getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func setDuration(getenv func(string) string, key string, dst *time.Duration, errs *[]error) {
	v := getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
