package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"runrelay/internal/app"
	"runrelay/internal/janitor"
)

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Drop associations older than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				return errors.New("--max-age must be > 0")
			}
			m, err := app.OpenMaintenance(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			defer m.Close()

			n, err := m.Expire(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d association(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", janitor.DefaultMaxAge, "drop associations created longer ago than this")

	return cmd
}
