package relay

import (
	"time"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/prompt"
)

// DefaultAllowedOrigins are the browser origins allowed to call the relay
// when none are configured: the local development UI.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Mode is the framing used for responses unless a request asks for
	// another one with ?mode=.
	Mode frame.Mode

	// AllowedOrigins is the CORS allowlist. Empty uses DefaultAllowedOrigins.
	AllowedOrigins []string

	// UpstreamTimeout bounds a whole generation. Zero means no deadline.
	UpstreamTimeout time.Duration

	// Model is passed to the provider on every request.
	Model string

	// MaxTokens bounds generated output. Zero uses the provider default.
	MaxTokens int

	// Prompts renders the upstream prompt for an input. Nil uses the
	// built-in prompt.
	Prompts prompt.Source

	// Publisher receives a telemetry event for every generation. Nil
	// disables telemetry.
	Publisher eventstream.Publisher

	// DisableMCP turns the /mcp endpoint into an empty MCP server.
	DisableMCP bool
}
