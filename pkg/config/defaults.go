package config

import "github.com/papercomputeco/scribe/pkg/frame"

const (
	defaultListen          = ":8080"
	defaultMode            = string(frame.Raw)
	defaultUpstreamTimeout = "5m"

	defaultProvider = "ollama"
	defaultUpstream = "http://localhost:11434"
	defaultModel    = "llama3.2"

	defaultClientTarget = "http://localhost:8080"

	defaultTelemetryTopic = "scribe.generations"
)

// defaultAllowedOrigins are the local development UI origins.
var defaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:          defaultListen,
			Mode:            defaultMode,
			AllowedOrigins:  append([]string(nil), defaultAllowedOrigins...),
			UpstreamTimeout: defaultUpstreamTimeout,
		},
		Upstream: UpstreamConfig{
			Provider: defaultProvider,
			Target:   defaultUpstream,
			Model:    defaultModel,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Telemetry: TelemetryConfig{
			Topic: defaultTelemetryTopic,
		},
	}
}
