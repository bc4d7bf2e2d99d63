package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brewlog/internal/recovery"
)

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-arm every active alarm",
		Long: `Clear every alarm registration and arm all active alarms again.

"brewlog serve" runs this automatically after a host reboot. Running it
by hand is safe at any time: alarms are never armed twice and missed
alarms are not armed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				sum, err := a.recovery.Recover(cmd.Context())
				if errors.Is(err, recovery.ErrIncomplete) {
					return WrapExitError(ExitFailure,
						fmt.Sprintf("recovery incomplete: %d armed, %d failed", sum.Armed, sum.Failed), err)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "recovery failed", err)
				}
				return formatter(opts, cmd).Success(recoverView(sum))
			})
		},
	}
}
