// Package configcmder provides the config command for managing persistent
// scribe configuration stored in the .scribe/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent scribe configuration.

Configuration is stored as config.toml in the .scribe/ directory and provides
default values for command flags. SCRIBE_* environment variables and CLI flags
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.mode, server.allowed_origins, server.upstream_timeout,
  upstream.provider, upstream.target, upstream.model, upstream.max_tokens,
  upstream.api_key_env, prompt.path, client.target,
  telemetry.brokers, telemetry.topic

List values such as server.allowed_origins are set as comma separated text.

Use subcommands to get, set, or list configuration values:
  scribe config set <key> <value>    Set a configuration value
  scribe config get <key>            Get a configuration value
  scribe config list [section]       List configuration values

Examples:
  scribe config set upstream.provider anthropic
  scribe config set server.mode event-stream
  scribe config get upstream.model
  scribe config list server`

const configShortDesc string = "Manage persistent scribe configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
