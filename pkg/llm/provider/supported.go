package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/scribe/pkg/llm/provider/lorem"
	"github.com/papercomputeco/scribe/pkg/llm/provider/ollama"
	"github.com/papercomputeco/scribe/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
	Lorem     = "lorem"

	// Auto picks the provider from the configured model name.
	Auto = "auto"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama, Lorem}
}

// Options configures a Provider built with New.
type Options struct {
	// Type is one of SupportedProviders, or Auto.
	Type string

	// Model is only consulted when Type is Auto.
	Model string

	// Target is the upstream base URL. Empty uses the provider's default.
	Target string

	// APIKey authenticates against hosted providers.
	APIKey string

	// HTTPClient is used by the HTTP based providers. Defaults to a client
	// without an overall timeout, since generations stream for minutes.
	HTTPClient *http.Client

	// WordDelay paces the lorem provider.
	WordDelay time.Duration

	Logger *slog.Logger
}

// New creates a new Provider for the given options.
// Returns an error if the provider type is not recognized.
func New(o Options) (Provider, error) {
	providerType := o.Type
	if providerType == Auto || providerType == "" {
		providerType = Detect(o.Model)
	}

	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	switch providerType {
	case Anthropic:
		return anthropic.New(anthropic.Config{
			APIKey:     o.APIKey,
			BaseURL:    o.Target,
			HTTPClient: httpClient,
		})
	case OpenAI:
		return openai.New(openai.Config{
			APIKey:     o.APIKey,
			BaseURL:    o.Target,
			HTTPClient: httpClient,
			Logger:     o.Logger,
		}), nil
	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL:    o.Target,
			HTTPClient: httpClient,
			Logger:     o.Logger,
		}), nil
	case Lorem:
		return lorem.New(lorem.Config{
			WordDelay: o.WordDelay,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", o.Type, SupportedProviders())
	}
}
