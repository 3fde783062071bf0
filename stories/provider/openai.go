package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// OpenAI serves plain requests through Chat Completions and structured ones through the
// Responses API with a strict JSON schema.
type OpenAI struct {
	client *openai.Client
	model  string
	opts   options
}

func NewOpenAI(apiKey, model string, opts ...Option) *OpenAI {
	o := applyOptions(opts)
	if model == "" {
		model = DefaultOpenAIModel
	}

	// Retries are handled by RetryPolicy so the waits stay visible and configurable.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	client := openai.NewClient(reqOpts...)
	return &OpenAI{client: &client, model: model, opts: o}
}

func (c *OpenAI) Model() string { return c.model }

func (c *OpenAI) Complete(ctx context.Context, req stories.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("openai: client is nil")
	}
	if len(req.Messages) == 0 {
		return "", errors.New("openai: no messages")
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case stories.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case stories.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
		N:           openai.Int(1),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := CallWithRetry(ctx, c.opts.retry, func(ctx context.Context) (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAI) CompleteJSON(ctx context.Context, req stories.StructuredRequest, out any) error {
	if c.client == nil {
		return errors.New("openai: client is nil")
	}
	if req.Schema == nil {
		return errors.New("openai: schema is nil")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.maxTokens
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        req.Name,
			Schema:      req.Schema,
			Strict:      openai.Bool(true),
			Description: openai.String(req.Description),
			Type:        "json_schema",
		},
	}
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Instructions:    openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := CallWithRetry(ctx, c.opts.retry, func(ctx context.Context) (*responses.Response, error) {
		return c.client.Responses.New(ctx, params)
	})
	if err != nil {
		return fmt.Errorf("openai responses: %w", err)
	}
	if err := fileutils.DecodeModelJSON(resp.OutputText(), out); err != nil {
		return fmt.Errorf("decode %s: %w", req.Name, err)
	}
	return nil
}
