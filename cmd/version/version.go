// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/utils"
)

type VersionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the scribe version",
		Long:  "Print the scribe version, the commit it was built from, and the Go toolchain used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version number")

	return cmd
}

func (c *VersionCommander) run(out io.Writer) error {
	if c.short {
		_, err := fmt.Fprintln(out, utils.Version)
		return err
	}

	_, err := fmt.Fprintf(out, "scribe %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s\n",
		utils.Version, utils.Sha, utils.Buildtime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
