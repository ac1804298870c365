// Package cli implements the runrelay command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X runrelay/internal/cli.Version=...".
var Version = "dev"

const defaultConfigPath = "./config.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "runrelay",
		Short: "Relay GitHub workflow runs to a Discord channel",
		Long: `runrelay receives GitHub workflow_run webhooks and keeps one Discord
message per run up to date until the run completes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "path to config file (json or yaml)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
