package llmclient

import (
	"context"
	"log/slog"
)

// FallbackClient tries each underlying Client in order, moving to the next
// on error or on an empty response, and only reports ErrNoProvider once the
// whole chain is exhausted.
type FallbackClient struct {
	chain  []Client
	logger *slog.Logger
}

// NewFallbackClient builds a chain that tries primary first, falling back
// through the rest in order. A nil entry in the chain (an unconfigured
// provider) is skipped.
func NewFallbackClient(chain ...Client) *FallbackClient {
	nonNil := make([]Client, 0, len(chain))
	for _, c := range chain {
		if c != nil {
			nonNil = append(nonNil, c)
		}
	}
	return &FallbackClient{
		chain:  nonNil,
		logger: slog.Default().With("component", "llmclient.fallback"),
	}
}

func (f *FallbackClient) Name() string { return "fallback" }

func (f *FallbackClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	var lastErr error
	for _, c := range f.chain {
		resp, err := c.Chat(ctx, systemPrompt, userPrompt)
		if err != nil {
			f.logger.Warn("provider failed, trying next", "provider", c.Name(), "error", err)
			lastErr = err
			continue
		}
		if resp.Text == "" {
			f.logger.Warn("provider returned empty response, trying next", "provider", c.Name())
			continue
		}
		return resp, nil
	}
	if lastErr != nil {
		return Response{}, lastErr
	}
	return Response{}, ErrNoProvider
}
