package llmclient

import (
	"context"
	"testing"

	"github.com/graphforge/codegraph/internal/errs"
)

type stubClient struct {
	name string
	resp Response
	err  error
}

func (s stubClient) Name() string { return s.name }

func (s stubClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	return s.resp, s.err
}

func TestFallbackClient_UsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := stubClient{name: "primary", resp: Response{Text: "hello"}}
	secondary := stubClient{name: "secondary", resp: Response{Text: "should not be used"}}

	fb := NewFallbackClient(primary, secondary)
	resp, err := fb.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hello" {
		t.Fatalf("expected primary's response, got %q", resp.Text)
	}
}

func TestFallbackClient_FallsBackOnEmptyResponse(t *testing.T) {
	primary := stubClient{name: "primary", resp: Response{Text: ""}}
	secondary := stubClient{name: "secondary", resp: Response{Text: "recovered"}}

	fb := NewFallbackClient(primary, secondary)
	resp, err := fb.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "recovered" {
		t.Fatalf("expected fallback's response, got %q", resp.Text)
	}
}

func TestFallbackClient_FallsBackOnError(t *testing.T) {
	primary := stubClient{name: "primary", err: errs.ExternalErrorf(nil, "boom")}
	secondary := stubClient{name: "secondary", resp: Response{Text: "recovered"}}

	fb := NewFallbackClient(primary, secondary)
	resp, err := fb.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "recovered" {
		t.Fatalf("expected fallback's response, got %q", resp.Text)
	}
}

func TestFallbackClient_ExhaustedChainReturnsError(t *testing.T) {
	primary := stubClient{name: "primary", resp: Response{Text: ""}}
	secondary := stubClient{name: "secondary", resp: Response{Text: ""}}

	fb := NewFallbackClient(primary, secondary)
	_, err := fb.Chat(context.Background(), "sys", "user")
	if err == nil {
		t.Fatalf("expected error when every provider returns empty")
	}
}

func TestNewFallbackClient_SkipsNilEntries(t *testing.T) {
	secondary := stubClient{name: "secondary", resp: Response{Text: "ok"}}
	fb := NewFallbackClient(nil, secondary)
	if len(fb.chain) != 1 {
		t.Fatalf("expected nil entries to be dropped, got chain length %d", len(fb.chain))
	}
}
