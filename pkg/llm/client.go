// Package llm provides the script generation client. Segment scripts are
// produced by an OpenAI-compatible completion backend; when none is
// configured the generation worker falls back to template scripts.
package llm

import (
	"context"
)

// CompletionRequest is one script generation call.
type CompletionRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResult carries the generated text plus accounting data that is
// recorded on the segment's generation metrics.
type CompletionResult struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	PromptTokens int    `json:"prompt_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Client generates completions.
type Client interface {
	// Complete runs one completion call.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// IsEnabled reports whether a backend is configured. Callers must
	// check this before Complete and degrade when it is false.
	IsEnabled() bool
}

// NoopClient is wired when no backend is configured.
type NoopClient struct{}

func NewNoopClient() *NoopClient { return &NoopClient{} }

func (c *NoopClient) IsEnabled() bool { return false }

func (c *NoopClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	return nil, ErrNotConfigured
}
