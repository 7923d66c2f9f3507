package wallet

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/spf13/cobra"
)

func newSelect() *cobra.Command {
	return &cobra.Command{
		Use:   "select <address>",
		Short: "Makes <address> the default sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				w, err := a.Wallet.SelectWallet(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", w.Address)

				return nil
			})
		},
	}
}

func newBackedUp() *cobra.Command {
	return &cobra.Command{
		Use:   "backed-up <address>",
		Short: "Records that the recovery phrase of <address> was written down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				w, err := a.Wallet.MarkBackedUp(ctx, args[0])
				if err != nil {
					return err
				}

				printWallet(cmd.OutOrStdout(), w)

				return nil
			})
		},
	}
}
