package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/provider"
)

const (
	ConfigPathEnv = "GPT_STORIES_CONFIG"
	ProviderEnv   = "GPT_STORIES_PROVIDER"
	ModelEnv      = "GPT_STORIES_MODEL"
)

// FileConfig holds the model settings shared by every subcommand. All fields are optional in the file.
type FileConfig struct {
	Provider       string      `yaml:"provider"`
	Model          string      `yaml:"model"`
	BaseURL        string      `yaml:"base_url"`
	Temperature    float64     `yaml:"temperature"`
	MaxTokens      int         `yaml:"max_tokens"`
	SystemPrompt   string      `yaml:"system_prompt"`
	PromptTemplate string      `yaml:"prompt_template"`
	SummaryPrompt  string      `yaml:"summary_prompt"`
	Retry          RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// Waits per attempt; the last entry repeats.
	RateLimitWaits   []time.Duration `yaml:"rate_limit_waits"`
	ServerErrorWaits []time.Duration `yaml:"server_error_waits"`
}

func DefaultFileConfig() FileConfig {
	p := provider.DefaultRetryPolicy()
	return FileConfig{
		Provider:      provider.NameOpenAI,
		Temperature:   stories.DefaultTemperature,
		SummaryPrompt: stories.DefaultSummaryPrompt,
		Retry: RetryConfig{
			MaxAttempts:      p.MaxAttempts,
			RateLimitWaits:   p.RateLimitWaits,
			ServerErrorWaits: p.ServerErrorWaits,
		},
	}
}

// LoadFileConfig reads path (or $GPT_STORIES_CONFIG) over the defaults and applies environment overrides.
// With no path at all the defaults are used.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return FileConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if v := os.Getenv(ProviderEnv); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(ModelEnv); v != "" {
		cfg.Model = v
	}
	return cfg, nil
}

func (c FileConfig) Validate() error {
	switch c.Provider {
	case provider.NameOpenAI, provider.NameAnthropic, provider.NameGemini:
	default:
		return fmt.Errorf("unknown provider %q (want openai, anthropic or gemini)", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be in [0,2]")
	}
	if c.MaxTokens < 0 {
		return errors.New("max_tokens must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	return nil
}

// ModelName is the configured model or the provider's default.
func (c FileConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return provider.DefaultModel(c.Provider)
}

func (c FileConfig) retryPolicy(log *zap.Logger) provider.RetryPolicy {
	return provider.RetryPolicy{
		MaxAttempts:      c.Retry.MaxAttempts,
		RateLimitWaits:   c.Retry.RateLimitWaits,
		ServerErrorWaits: c.Retry.ServerErrorWaits,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			log.Warn("model request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	}
}

// resolveAPIKey prefers --api-key over the provider's environment variable.
func (a *app) resolveAPIKey() (string, error) {
	if a.apiKey != "" {
		return a.apiKey, nil
	}
	env := provider.APIKeyEnv(a.cfg.Provider)
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	return "", usage(fmt.Errorf("missing %s (or pass --api-key)", env))
}

// providerClients builds the plain and structured clients for the configured provider.
// Providers without native schema support get structured output through provider.JSONPrompted.
func (a *app) providerClients(ctx context.Context) (stories.Completer, stories.StructuredCompleter, error) {
	key, err := a.resolveAPIKey()
	if err != nil {
		return nil, nil, err
	}
	opts := []provider.Option{provider.WithRetryPolicy(a.cfg.retryPolicy(a.logger))}
	if a.cfg.BaseURL != "" {
		opts = append(opts, provider.WithBaseURL(a.cfg.BaseURL))
	}
	if a.cfg.MaxTokens > 0 {
		opts = append(opts, provider.WithDefaultMaxTokens(a.cfg.MaxTokens))
	}
	model := a.cfg.ModelName()

	switch a.cfg.Provider {
	case provider.NameAnthropic:
		c := provider.NewAnthropic(key, model, opts...)
		return c, provider.JSONPrompted{Completer: c}, nil
	case provider.NameGemini:
		c, err := provider.NewGemini(ctx, key, model, opts...)
		if err != nil {
			return nil, nil, err
		}
		return c, provider.JSONPrompted{Completer: c}, nil
	default:
		c := provider.NewOpenAI(key, model, opts...)
		return c, c, nil
	}
}
