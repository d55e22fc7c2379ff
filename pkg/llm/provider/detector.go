package provider

import "strings"

// modelPrefixes maps well-known model name prefixes to their provider.
// Checked in order; the first match wins.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"claude-", Anthropic},
	{"gpt-", OpenAI},
	{"chatgpt-", OpenAI},
	{"o1", OpenAI},
	{"o3", OpenAI},
	{"o4", OpenAI},
	{"lorem-", Lorem},
}

// Detect returns the provider type for a model name. Unrecognized models are
// assumed to be served by a local Ollama.
func Detect(model string) string {
	lower := strings.ToLower(strings.TrimSpace(model))
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.provider
		}
	}
	return Ollama
}
