package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/scribe/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SCRIBE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SCRIBE_SERVER_LISTEN, SCRIBE_UPSTREAM_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SCRIBE_SERVER_MODE, SCRIBE_TELEMETRY_BROKERS, etc.
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// GetList reads a list value that may come from TOML as an array, or from
// an env var or flag as a comma separated string.
func GetList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return SplitList(s)
	}
	return v.GetStringSlice(key)
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.upstream_timeout", d.Server.UpstreamTimeout)

	// Upstream
	v.SetDefault("upstream.provider", d.Upstream.Provider)
	v.SetDefault("upstream.target", d.Upstream.Target)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.max_tokens", d.Upstream.MaxTokens)
	v.SetDefault("upstream.api_key_env", d.Upstream.APIKeyEnv)

	// Prompt
	v.SetDefault("prompt.path", d.Prompt.Path)

	// Client
	v.SetDefault("client.target", d.Client.Target)

	// Telemetry
	v.SetDefault("telemetry.brokers", d.Telemetry.Brokers)
	v.SetDefault("telemetry.topic", d.Telemetry.Topic)
}
