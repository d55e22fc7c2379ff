package configcmder

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
)

const listLongDesc string = `List configuration values.

Prints every key grouped by its config.toml section, with the value the
relay and client will use. Pass a section name to list only that section.
Unset keys show the built-in default.

Examples:
  scribe config list
  scribe config list server
  scribe config list upstream`

const listShortDesc string = "List configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "list [section]",
		Short:     listShortDesc,
		Long:      listLongDesc,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: sections(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			section := ""
			if len(args) == 1 {
				section = args[0]
			}
			return runList(cmd.OutOrStdout(), configDir, section)
		},
	}

	return cmd
}

// sections returns the config.toml section names in key order.
func sections() []string {
	var out []string
	for _, key := range config.ValidConfigKeys() {
		section, _, _ := strings.Cut(key, ".")
		if !slices.Contains(out, section) {
			out = append(out, section)
		}
	}
	return out
}

func runList(out io.Writer, configDir, section string) error {
	if section != "" && !slices.Contains(sections(), section) {
		return fmt.Errorf("unknown config section: %q\n\nValid sections: %s",
			section, strings.Join(sections(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	current := ""
	for _, key := range config.ValidConfigKeys() {
		keySection, _, _ := strings.Cut(key, ".")
		if section != "" && keySection != section {
			continue
		}
		if keySection != current {
			current = keySection
			fmt.Fprintf(out, "\n  %s\n", cliui.StepStyle.Render("["+keySection+"]"))
		}

		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if value == "" {
			fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
		} else {
			fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
		}
	}
	fmt.Fprintln(out)

	return nil
}
