// Package provider defines the upstream token sources scribe can relay from.
package provider

import (
	"context"

	"github.com/papercomputeco/scribe/pkg/llm"
)

// Provider is an upstream LLM that streams generated text.
//
// Stream starts a generation and returns a channel of chunks in the order the
// model produced them. An error returned directly from Stream means nothing
// was generated at all. Once streaming, failures arrive as a final chunk
// carrying Err. The channel is closed when the generation ends, and the
// producer stops early when ctx is cancelled.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai", "ollama", "lorem")
	Name() string

	Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error)
}
