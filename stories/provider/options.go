// Package provider adapts language-model vendor SDKs to the stories.Completer and
// stories.StructuredCompleter interfaces.
package provider

import "net/http"

const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultGeminiModel    = "gemini-2.0-flash-lite"
)

// DefaultModel returns the model used when none is configured for the named provider.
func DefaultModel(name string) string {
	switch name {
	case NameAnthropic:
		return DefaultAnthropicModel
	case NameGemini:
		return DefaultGeminiModel
	default:
		return DefaultOpenAIModel
	}
}

// APIKeyEnv returns the environment variable holding the named provider's key.
func APIKeyEnv(name string) string {
	switch name {
	case NameAnthropic:
		return "ANTHROPIC_API_KEY"
	case NameGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

type options struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	maxTokens  int
}

func defaultOptions() options {
	return options{
		retry:     DefaultRetryPolicy(),
		maxTokens: 1024,
	}
}

// Option configures a provider client.
type Option func(*options)

// WithBaseURL points the client at a different API endpoint (proxies, tests).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

// WithDefaultMaxTokens sets the cap used when a request leaves MaxTokens at 0.
// Anthropic requires an explicit cap on every request.
func WithDefaultMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
