// Package llmclient implements the LLM invocation contract: a single
// provider-neutral Chat method the documentation engine calls without
// knowing which backend answers it, plus a fallback wrapper that tries a
// secondary provider when the primary returns nothing usable.
//
// Provider selection, credential sourcing, and prompt construction are
// deliberately kept out of this package (credentials and prompt libraries
// are out of scope); callers hand this package a system/user prompt pair
// already composed via internal/prompts and get text back.
package llmclient

import (
	"context"

	"github.com/graphforge/codegraph/internal/errs"
)

// Response is what a single Chat call returns. Usage is best-effort --
// providers that don't report token counts leave it zeroed.
type Response struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client is the contract every provider adapter and the fallback wrapper
// satisfy. A blank Response.Text with a nil error is treated by Fallback as
// "try the next provider" -- a provider adapter should prefer returning an
// error over a silently empty response where it can tell the two apart.
type Client interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error)
	Name() string
}

// ErrNoProvider is returned when no provider in a chain produced a usable
// response.
var ErrNoProvider = errs.ExternalErrorf(nil, "no configured provider returned a usable response")
