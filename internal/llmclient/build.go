package llmclient

import (
	"context"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/errs"
)

// Build constructs a Client from an LLMConfig, ordering providers primary
// then fallback. Only providers with a configured key are included; at
// least one of Primary/Fallback must resolve to a usable provider.
func Build(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	var chain []Client

	for _, name := range []string{cfg.Primary, cfg.Fallback} {
		c, err := buildOne(ctx, name, cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			chain = append(chain, c)
		}
	}

	if len(chain) == 0 {
		return nil, errs.ConfigErrorf("llm: no provider configured (primary=%q fallback=%q)", cfg.Primary, cfg.Fallback)
	}
	return NewFallbackClient(chain...), nil
}

func buildOne(ctx context.Context, name string, cfg config.LLMConfig) (Client, error) {
	switch name {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, nil
		}
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, nil
		}
		return NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel)
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, nil
		}
		return NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case "":
		return nil, nil
	default:
		return nil, errs.ConfigErrorf("llm: unknown provider %q", name)
	}
}
