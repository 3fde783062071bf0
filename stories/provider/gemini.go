package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

type Gemini struct {
	client *genai.Client
	model  string
	opts   options
}

func NewGemini(ctx context.Context, apiKey, model string, opts ...Option) (*Gemini, error) {
	o := applyOptions(opts)
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	if o.httpClient != nil {
		cc.HTTPClient = o.httpClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, opts: o}, nil
}

func (c *Gemini) Model() string { return c.model }

func (c *Gemini) Complete(ctx context.Context, req stories.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("gemini: client is nil")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case stories.RoleSystem:
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
		case stories.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: no user messages")
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := CallWithRetry(ctx, c.opts.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
