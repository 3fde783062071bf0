package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

type Anthropic struct {
	client *anthropic.Client
	model  string
	opts   options
}

func NewAnthropic(apiKey, model string, opts ...Option) *Anthropic {
	o := applyOptions(opts)
	if model == "" {
		model = DefaultAnthropicModel
	}

	reqOpts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, anthropicoption.WithHTTPClient(o.httpClient))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Anthropic{client: &client, model: model, opts: o}
}

func (c *Anthropic) Model() string { return c.model }

func (c *Anthropic) Complete(ctx context.Context, req stories.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("anthropic: client is nil")
	}

	var system []anthropic.TextBlockParam
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case stories.RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case stories.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(msgs) == 0 {
		return "", errors.New("anthropic: no user messages")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		System:      system,
		Messages:    msgs,
		Temperature: anthropic.Float(req.Temperature),
	}

	resp, err := CallWithRetry(ctx, c.opts.retry, func(ctx context.Context) (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		b.WriteString(block.Text)
	}
	if b.Len() == 0 {
		return "", errors.New("no response from anthropic")
	}
	return strings.TrimSpace(b.String()), nil
}
