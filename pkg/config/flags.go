package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --mode on
// both "scribe serve" and "scribe generate").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagMode            = "mode"
	FlagAllowedOrigins  = "allowed-origins"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagProvider        = "provider"
	FlagUpstream        = "upstream"
	FlagModel           = "model"
	FlagMaxTokens       = "max-tokens"
	FlagAPIKeyEnv       = "api-key-env"
	FlagPrompt          = "prompt"
	FlagTarget          = "target"
	FlagBrokers         = "telemetry-brokers"
	FlagTopic           = "telemetry-topic"
)

// ServeFlags are the flags of "scribe serve".
var ServeFlags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the relay to listen on"},
	FlagMode:            {Name: "mode", Shorthand: "m", ViperKey: "server.mode", Description: "Default response framing (raw, event-stream)"},
	FlagAllowedOrigins:  {Name: "allowed-origins", ViperKey: "server.allowed_origins", Description: "Comma separated CORS origins"},
	FlagUpstreamTimeout: {Name: "upstream-timeout", ViperKey: "server.upstream_timeout", Description: "Deadline for one generation (e.g. 5m)"},
	FlagProvider:        {Name: "provider", Shorthand: "p", ViperKey: "upstream.provider", Description: "LLM provider type (anthropic, openai, ollama, lorem, auto)"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "upstream.target", Description: "Upstream LLM provider URL"},
	FlagModel:           {Name: "model", ViperKey: "upstream.model", Description: "Model used to write articles"},
	FlagMaxTokens:       {Name: "max-tokens", ViperKey: "upstream.max_tokens", Description: "Maximum tokens per article (0 for provider default)"},
	FlagAPIKeyEnv:       {Name: "api-key-env", ViperKey: "upstream.api_key_env", Description: "Environment variable holding the upstream API key"},
	FlagPrompt:          {Name: "prompt", ViperKey: "prompt.path", Description: "Prompt template file (default: built-in)"},
	FlagBrokers:         {Name: "telemetry-brokers", ViperKey: "telemetry.brokers", Description: "Comma separated Kafka brokers for generation events"},
	FlagTopic:           {Name: "telemetry-topic", ViperKey: "telemetry.topic", Description: "Kafka topic for generation events"},
}

// GenerateFlags are the flags of "scribe generate".
var GenerateFlags = FlagSet{
	FlagTarget: {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Relay URL"},
	FlagMode:   {Name: "mode", Shorthand: "m", ViperKey: "", Description: "Ask the relay for a framing (raw, event-stream)"},
}

// Keys returns the registry keys in fs.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil || def.ViperKey == "" {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
// List values are joined with commas.
func defaultString(viperKey string) string {
	if viperKey == "" {
		return ""
	}
	v := viper.New()
	setViperDefaults(v)
	return strings.Join(GetList(v, viperKey), ",")
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
