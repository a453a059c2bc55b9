package llmclient

import (
	"context"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/graphforge/codegraph/internal/errs"
)

// AnthropicClient adapts github.com/anthropics/anthropic-sdk-go to the
// Client contract.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errs.ConfigErrorf("anthropic api key is required")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: slog.Default().With("component", "llmclient.anthropic"),
	}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(c.model)),
		MaxTokens: anthropic.F(int64(700)),
		System: anthropic.F([]anthropic.TextBlockParam{
			{Text: anthropic.F(systemPrompt)},
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		}),
	})
	if err != nil {
		return Response{}, errs.ExternalErrorf(err, "anthropic message completion failed")
	}
	if len(msg.Content) == 0 {
		return Response{}, errs.ExternalErrorf(nil, "anthropic returned no content blocks")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	c.logger.Debug("chat completion",
		"prompt_length", len(userPrompt),
		"response_length", len(text),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)

	return Response{
		Text:         text,
		Provider:     c.Name(),
		Model:        c.model,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
