package wallet

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	core "github.com/chapool/wallet-core/internal/wallet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists stored wallets, the selected one marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				wallets, err := a.Wallet.Wallets(ctx)
				if err != nil {
					return err
				}

				selected := ""
				if w, err := a.Wallet.SelectedWallet(ctx); err == nil {
					selected = w.Address
				} else if !errors.Is(err, core.ErrNoSelection) {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd
				fmt.Fprintln(tw, "\tADDRESS\tCREATED\tBACKED UP")
				for _, w := range wallets {
					marker := ""
					if w.Address == selected {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", marker, w.Address, w.CreatedAt.Format(time.RFC3339), w.IsBackedUp)
				}

				return tw.Flush()
			})
		},
	}
}
