// Package anthropic streams generations from Anthropic's Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/scribe/pkg/llm"
)

const (
	providerName = "anthropic"

	// defaultMaxTokens is used when the request does not set a limit. The
	// Messages API requires one.
	defaultMaxTokens = 4096
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: missing API key")

// Config configures the Anthropic provider.
type Config struct {
	APIKey string

	// BaseURL overrides the API endpoint, mostly for tests and gateways.
	BaseURL    string
	HTTPClient *http.Client
}

// Provider implements provider.Provider on top of the Anthropic SDK.
type Provider struct {
	client *anthropic.Client
}

func New(c Config) (*Provider, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	client := anthropic.NewClient(opts...)
	return &Provider{client: &client}, nil
}

func (p *Provider) Name() string {
	return providerName
}

// Stream starts a streaming message. The SDK only reports HTTP failures once
// iteration begins, so an upstream rejection arrives as the first chunk
// carrying Err rather than as a returned error.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	params := buildMessageParams(req)

	ch := make(chan llm.StreamChunk, 16)
	go func() {
		defer close(ch)

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				llm.Send(ctx, ch, llm.StreamChunk{Err: fmt.Errorf("accumulate message: %w", err)})
				return
			}

			e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok || e.Delta.Type != "text_delta" || e.Delta.Text == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.StreamChunk{Text: e.Delta.Text}) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			llm.Send(ctx, ch, llm.StreamChunk{Err: fmt.Errorf("anthropic streaming error: %w", err)})
			return
		}

		llm.Send(ctx, ch, llm.StreamChunk{
			StopReason: string(message.StopReason),
			Usage: &llm.Usage{
				PromptTokens:     int(message.Usage.InputTokens),
				CompletionTokens: int(message.Usage.OutputTokens),
				TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
			},
		})
	}()

	return ch, nil
}

func buildMessageParams(req *llm.GenerateRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokensOr(defaultMaxTokens)),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: req.System,
			},
		}
	}
	return params
}
