package wallet

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const yesFlag = "yes"

func newDelete() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <address>",
		Short: "Erases the key of a wallet and its local state",
		Long:  "Erases the encrypted key of <address>. Without its recovery phrase the funds are lost.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, err := cmd.Flags().GetBool(yesFlag)
			if err != nil {
				return err
			}

			if !yes {
				return errors.New("refusing to delete without --yes")
			}

			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Wallet.DeleteWallet(ctx, args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])

				return nil
			})
		},
	}

	cmd.Flags().Bool(yesFlag, false, "confirm the deletion")

	return cmd
}
