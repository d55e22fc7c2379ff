package llm

// GenerateRequest is a provider-agnostic request for one streamed generation.
type GenerateRequest struct {
	// Model name (e.g., "claude-sonnet-4-5", "gpt-4o", "llama3.2")
	Model string `json:"model"`

	// System prompt, sent separately from Messages by providers that support it.
	System string `json:"system,omitempty"`

	// Conversation messages, normally a single rendered user message.
	Messages []Message `json:"messages"`

	// Subject is the raw user input the prompt was rendered from.
	Subject string `json:"subject,omitempty"`

	// MaxTokens bounds the generated output. Zero means the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
}

// MaxTokensOr returns MaxTokens, or def when it is unset.
func (r *GenerateRequest) MaxTokensOr(def int) int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return def
}
