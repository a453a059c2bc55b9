package llmclient

import (
	"context"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/graphforge/codegraph/internal/errs"
)

// OpenAIClient adapts github.com/sashabaranov/go-openai to the Client
// contract.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errs.ConfigErrorf("openai api key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: slog.Default().With("component", "llmclient.openai"),
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.0,
		MaxTokens:   700,
	})
	if err != nil {
		return Response{}, errs.ExternalErrorf(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return Response{}, errs.ExternalErrorf(nil, "openai returned no choices")
	}

	text := resp.Choices[0].Message.Content
	c.logger.Debug("chat completion",
		"prompt_length", len(userPrompt),
		"response_length", len(text),
		"tokens_used", resp.Usage.TotalTokens,
	)

	return Response{
		Text:         text,
		Provider:     c.Name(),
		Model:        c.model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
