package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/llm/provider"
)

// Config represents the persistent scribe configuration stored as config.toml
// in the .scribe/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Server    ServerConfig    `toml:"server"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Prompt    PromptConfig    `toml:"prompt"`
	Client    ClientConfig    `toml:"client"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Mode is the default response framing: "raw" or "event-stream".
	Mode string `toml:"mode,omitempty"`

	AllowedOrigins []string `toml:"allowed_origins,omitempty"`

	// UpstreamTimeout bounds one generation, as a Go duration ("5m").
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
}

// UpstreamConfig selects and addresses the LLM that generates articles.
type UpstreamConfig struct {
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Model     string `toml:"model,omitempty"`
	MaxTokens int    `toml:"max_tokens,omitempty"`

	// APIKeyEnv names the environment variable holding the API key. The key
	// itself is never written to config.toml.
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// PromptConfig locates the prompt template.
type PromptConfig struct {
	// Path to a prompt template. Relative paths resolve against the .scribe/
	// directory. Empty uses the built-in prompt.
	Path string `toml:"path,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// relay (e.g. scribe generate). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// TelemetryConfig configures where generation events are published.
// No brokers disables publishing.
type TelemetryConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.mode": {
		get: func(c *Config) string { return c.Server.Mode },
		set: func(c *Config, v string) error {
			m, err := frame.ParseMode(v)
			if err != nil {
				return fmt.Errorf("invalid value for server.mode: %w", err)
			}
			c.Server.Mode = string(m)
			return nil
		},
	},
	"server.allowed_origins": {
		get: func(c *Config) string { return strings.Join(c.Server.AllowedOrigins, ",") },
		set: func(c *Config, v string) error { c.Server.AllowedOrigins = SplitList(v); return nil },
	},
	"server.upstream_timeout": {
		get: func(c *Config) string { return c.Server.UpstreamTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for server.upstream_timeout: %w", err)
			}
			c.Server.UpstreamTimeout = v
			return nil
		},
	},
	"upstream.provider": {
		get: func(c *Config) string { return c.Upstream.Provider },
		set: func(c *Config, v string) error {
			if !isSupportedProvider(v) {
				return fmt.Errorf("invalid value for upstream.provider: %q (supported: %v)", v, provider.SupportedProviders())
			}
			c.Upstream.Provider = v
			return nil
		},
	},
	"upstream.target": {
		get: func(c *Config) string { return c.Upstream.Target },
		set: func(c *Config, v string) error { c.Upstream.Target = v; return nil },
	},
	"upstream.model": {
		get: func(c *Config) string { return c.Upstream.Model },
		set: func(c *Config, v string) error { c.Upstream.Model = v; return nil },
	},
	"upstream.max_tokens": {
		get: func(c *Config) string {
			if c.Upstream.MaxTokens == 0 {
				return ""
			}
			return strconv.Itoa(c.Upstream.MaxTokens)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for upstream.max_tokens: %q", v)
			}
			c.Upstream.MaxTokens = n
			return nil
		},
	},
	"upstream.api_key_env": {
		get: func(c *Config) string { return c.Upstream.APIKeyEnv },
		set: func(c *Config, v string) error { c.Upstream.APIKeyEnv = v; return nil },
	},
	"prompt.path": {
		get: func(c *Config) string { return c.Prompt.Path },
		set: func(c *Config, v string) error { c.Prompt.Path = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"telemetry.brokers": {
		get: func(c *Config) string { return strings.Join(c.Telemetry.Brokers, ",") },
		set: func(c *Config, v string) error { c.Telemetry.Brokers = SplitList(v); return nil },
	},
	"telemetry.topic": {
		get: func(c *Config) string { return c.Telemetry.Topic },
		set: func(c *Config, v string) error { c.Telemetry.Topic = v; return nil },
	},
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isSupportedProvider(name string) bool {
	return name == provider.Auto || slices.Contains(provider.SupportedProviders(), name)
}
