package tx

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/spf13/cobra"
)

func newBalance() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Prints the balance of [address] or of the selected wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.VerifyEndpoint(ctx); err != nil {
					return err
				}

				var addr string
				if len(args) == 1 {
					addr = args[0]
				}

				addr, err := sender(ctx, a, addr)
				if err != nil {
					return err
				}

				balance, err := a.Wallet.Balance(ctx, addr)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", units.FormatEther(balance), a.Config.Network.NativeSymbol)

				return nil
			})
		},
	}
}
