package ollama

import (
	"bufio"
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
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	chatPath       = "/api/chat"
	maxErrorBody   = 4096
)

// Config configures the Ollama provider.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider implements provider.Provider for Ollama's chat API.
type Provider struct {
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
	return &Provider{baseURL: baseURL, httpClient: httpClient, logger: log}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	body := ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug("requesting ollama stream", "url", httpReq.URL.String(), "model", req.Model)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
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

// pump reads newline-delimited JSON objects until one reports done.
func (p *Provider) pump(ctx context.Context, body io.ReadCloser, ch chan<- llm.StreamChunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp ollamaResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			p.logger.Warn("skipping unparseable ollama line", "error", err)
			continue
		}

		if resp.Error != "" {
			llm.Send(ctx, ch, llm.StreamChunk{Err: fmt.Errorf("ollama: %s", resp.Error)})
			return
		}

		if resp.Message.Content != "" {
			if !llm.Send(ctx, ch, llm.StreamChunk{Text: resp.Message.Content}) {
				return
			}
		}

		if resp.Done {
			llm.Send(ctx, ch, llm.StreamChunk{
				StopReason: resp.DoneReason,
				Usage: &llm.Usage{
					PromptTokens:     resp.PromptEvalCount,
					CompletionTokens: resp.EvalCount,
					TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
				},
			})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		llm.Send(ctx, ch, llm.StreamChunk{Err: fmt.Errorf("read ollama stream: %w", err)})
		return
	}
	llm.Send(ctx, ch, llm.StreamChunk{Err: errors.New("ollama stream ended before done")})
}
