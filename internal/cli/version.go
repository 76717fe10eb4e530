package cli

import (
	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at build time via
// -ldflags "-X github.com/avow-dev/avow/internal/cli.Version=...".
var Version = "0.1.0-dev"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the avow version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			if formatter.Format == "json" {
				return formatter.JSON(map[string]string{"version": Version})
			}
			formatter.Text("avow %s", Version)
			return nil
		},
	}
}
