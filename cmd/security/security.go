package security

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/spf13/cobra"
)

const minPINLength = 4

func New() *cobra.Command {
	return command.NewSubcommandGroup("security",
		newSetup(),
		newStatus(),
	)
}

func newSetup() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Sets or replaces the PIN that authorizes signing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				pin, err := command.PromptNewSecret("New PIN (4-12 digits): ", minPINLength)
				if err != nil {
					return err
				}

				if err := a.Gate.Setup(ctx, pin); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "PIN set")

				return nil
			})
		},
	}
}

func newStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Reports whether a PIN is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				setup, err := a.Wallet.IsSecuritySetup(ctx)
				if err != nil {
					return err
				}

				if setup {
					fmt.Fprintln(cmd.OutOrStdout(), "PIN is set")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No PIN set, run `security setup` before sending")
				}

				return nil
			})
		},
	}
}
