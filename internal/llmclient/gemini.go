package llmclient

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/graphforge/codegraph/internal/errs"
)

// GeminiClient adapts google.golang.org/genai to the Client contract.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errs.ConfigErrorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.ExternalErrorf(err, "failed to create gemini client")
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "llmclient.gemini"),
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func ptrFloat32(f float32) *float32 { return &f }

func (c *GeminiClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	var systemInstruction *genai.Content
	if systemPrompt != "" {
		systemInstruction = genai.Text(systemPrompt)[0]
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       ptrFloat32(0.0),
		MaxOutputTokens:   700,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), genConfig)
	if err != nil {
		return Response{}, errs.ExternalErrorf(err, "gemini completion failed")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, errs.ExternalErrorf(nil, "gemini returned no content")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	c.logger.Debug("chat completion", "prompt_length", len(userPrompt), "response_length", len(text))

	return Response{Text: text, Provider: c.Name(), Model: c.model}, nil
}
