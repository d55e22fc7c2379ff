// Package openai streams generations from OpenAI compatible chat completion
// endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/sse"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com"
	completionPath = "/v1/chat/completions"

	// doneSentinel terminates an OpenAI event stream.
	doneSentinel = "[DONE]"

	// maxErrorBody caps how much of an upstream error body is kept.
	maxErrorBody = 4096
)

// Config configures the OpenAI provider.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider implements provider.Provider for OpenAI's Chat Completions API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(c Config) *Provider {
	baseURL := strings.TrimSuffix(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Provider{
		apiKey:     c.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     log,
	}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+completionPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	p.logger.Debug("requesting openai stream",
		"url", httpReq.URL.String(),
		"model", req.Model,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &llm.StatusError{
			Provider:   providerName,
			StatusCode: httpResp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	ch := make(chan llm.StreamChunk, 16)
	go p.pump(ctx, httpResp.Body, ch)
	return ch, nil
}

func (p *Provider) buildRequest(req *llm.GenerateRequest) *openaiRequest {
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	return &openaiRequest{
		Model:         req.Model,
		Messages:      messages,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &openaiStreamOptions{IncludeUsage: true},
	}
}

// pump reads the upstream event stream and forwards text deltas until the
// "[DONE]" sentinel, an error, or cancellation.
func (p *Provider) pump(ctx context.Context, body io.ReadCloser, ch chan<- llm.StreamChunk) {
	defer close(ch)
	defer body.Close()

	reader := sse.NewReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			llm.Send(ctx, ch, llm.StreamChunk{Err: fmt.Errorf("read openai stream: %w", err)})
			return
		}
		if ev == nil {
			llm.Send(ctx, ch, llm.StreamChunk{Err: errors.New("openai stream ended before [DONE]")})
			return
		}
		if ev.Data == doneSentinel {
			return
		}

		chunk, err := p.ParseStreamChunk([]byte(ev.Data))
		if err != nil {
			p.logger.Warn("skipping unparseable openai chunk", "error", err)
			continue
		}
		if chunk.Err == nil && chunk.Text == "" && chunk.Usage == nil && chunk.StopReason == "" {
			continue
		}
		if !llm.Send(ctx, ch, *chunk) {
			return
		}
		if chunk.Err != nil {
			return
		}
	}
}

// ParseStreamChunk decodes a single "data:" payload of a streamed chat
// completion.
func (p *Provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var raw openaiStreamChunk
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	if raw.Error != nil {
		return &llm.StreamChunk{Err: fmt.Errorf("openai: %s", raw.Error.Message)}, nil
	}

	chunk := &llm.StreamChunk{}
	if len(raw.Choices) > 0 {
		choice := raw.Choices[0]
		chunk.Text = choice.Delta.Content
		if choice.FinishReason != nil {
			chunk.StopReason = *choice.FinishReason
		}
	}
	if raw.Usage != nil {
		chunk.Usage = &llm.Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
			TotalTokens:      raw.Usage.TotalTokens,
		}
	}
	return chunk, nil
}
