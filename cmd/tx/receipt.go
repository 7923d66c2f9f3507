package tx

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/spf13/cobra"
)

func newReceipt() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <hash>",
		Short: "Waits for <hash> to be mined and prints its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.VerifyEndpoint(ctx); err != nil {
					return err
				}

				record, err := a.Wallet.TrackReceipt(ctx, args[0])
				if err != nil {
					return err
				}

				printRecord(cmd, record)

				return nil
			})
		},
	}
}

func printRecord(cmd *cobra.Command, record transaction.Record) {
	out := cmd.OutOrStdout()

	if record.BlockNumber == nil {
		fmt.Fprintf(out, "%s %s\n", record.Hash.Hex(), record.Status)
		return
	}

	fmt.Fprintf(out, "%s %s in block %d\n", record.Hash.Hex(), record.Status, *record.BlockNumber)
}
