package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"runrelay/internal/app"
)

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <run-id>",
		Short: "Drop the message association of one workflow run",
		Long: `Drop the message association of one workflow run.

The next event for that run posts a new message instead of editing the old one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.OpenMaintenance(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot run %s\n", args[0])
			return nil
		},
	}
}
