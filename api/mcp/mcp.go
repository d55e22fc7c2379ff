// Package mcp provides an MCP (Model Context Protocol) server that exposes
// article generation as a tool.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/scribe/pkg/llm/provider"
	"github.com/papercomputeco/scribe/pkg/prompt"
	"github.com/papercomputeco/scribe/pkg/utils"
)

type Config struct {
	// Provider generates the article text
	Provider provider.Provider

	// Prompts hands out the prompt template for each call
	Prompts prompt.Source

	// Model overrides the provider's model when set
	Model string

	// MaxTokens bounds generated output, zero uses the provider default
	MaxTokens int

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the generate tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "scribe",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	s.mcpServer = mcpServer
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		return s, nil
	}

	if c.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if c.Prompts == nil {
		return nil, errors.New("prompt source is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        generateToolName,
		Description: generateDescription,
	}, s.handleGenerate)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
