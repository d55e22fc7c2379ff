package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/prompt"
	"github.com/papercomputeco/scribe/pkg/utils"
)

var (
	generateToolName    = "generate_article"
	generateDescription = "Write a short encyclopedia-style article in markdown about a concept. Returns the complete article once generation has finished."
)

// GenerateInput represents the input arguments for the generate tool.
type GenerateInput struct {
	Input string `json:"input" jsonschema:"the concept to write about"`
}

// GenerateOutput represents the output of the generate tool.
type GenerateOutput struct {
	Input    string `json:"input"`
	Article  string `json:"article"`
	Provider string `json:"provider"`
}

// handleGenerate runs one generation to completion. MCP tool results are not
// streamed, so the fragments are collected into the final article.
func (s *Server) handleGenerate(ctx context.Context, _ *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	logger := s.config.Logger

	subject := strings.TrimSpace(input.Input)
	if subject == "" {
		return toolError("Missing or invalid 'input'"), GenerateOutput{}, nil
	}

	logger.Debug("MCP generate request", "input", utils.Truncate(subject, 80))

	rendered, err := s.config.Prompts.Current().Render(prompt.Params{UserInput: subject})
	if err != nil {
		logger.Error("failed to render prompt", "error", err)
		return toolError(fmt.Sprintf("Failed to render prompt: %v", err)), GenerateOutput{}, nil
	}

	chunks, err := s.config.Provider.Stream(ctx, &llm.GenerateRequest{
		Model:     s.config.Model,
		System:    rendered.System,
		Messages:  []llm.Message{llm.NewUserMessage(rendered.User)},
		Subject:   subject,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		logger.Error("failed to start generation", "error", err)
		return toolError(fmt.Sprintf("Failed to start generation: %v", err)), GenerateOutput{}, nil
	}

	article, err := llm.Collect(ctx, chunks)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return toolError(fmt.Sprintf("Generation failed: %v", err)), GenerateOutput{}, nil
	}

	output := GenerateOutput{
		Input:    subject,
		Article:  article,
		Provider: s.config.Provider.Name(),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: article},
		},
	}, output, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
