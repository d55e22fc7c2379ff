// Package scribecmder
package scribecmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/scribe/cmd/scribe/auth"
	configcmder "github.com/papercomputeco/scribe/cmd/scribe/config"
	generatecmder "github.com/papercomputeco/scribe/cmd/scribe/generate"
	initcmder "github.com/papercomputeco/scribe/cmd/scribe/init"
	servecmder "github.com/papercomputeco/scribe/cmd/scribe/serve"
	versioncmder "github.com/papercomputeco/scribe/cmd/version"
)

const scribeLongDesc string = `Scribe streams LLM written articles to browsers and terminals.

Run the relay and generate articles using:
  scribe serve                 Run the relay server
  scribe generate "<topic>"    Stream an article from a running relay
  scribe init --preset lorem   Create a local .scribe/ directory
  scribe config list           Show persistent configuration`

const scribeShortDesc string = "Scribe - streaming article relay"

func NewScribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scribe",
		Short:        scribeShortDesc,
		Long:         scribeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .scribe/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
