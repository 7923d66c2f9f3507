package tx

import (
	"context"
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	fromFlag = "from"
	toFlag   = "to"
	dataFlag = "data"
	tierFlag = "tier"
)

var allTiers = []fee.Tier{fee.TierSlow, fee.TierStandard, fee.TierFast}

func newFees() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Prints fee estimates for each tier",
		Long: `Prices a transfer (or the call given by --to and --data) from the selected wallet
using recent eth_feeHistory data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			from, _ := flags.GetString(fromFlag)
			to, _ := flags.GetString(toFlag)
			rawData, _ := flags.GetString(dataFlag)
			rawTier, _ := flags.GetString(tierFlag)

			tiers := allTiers
			if rawTier != "" {
				tier, err := fee.ParseTier(rawTier)
				if err != nil {
					return err
				}
				tiers = []fee.Tier{tier}
			}

			data, err := decodeData(rawData)
			if err != nil {
				return errors.Wrap(err, "invalid --data")
			}

			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.VerifyEndpoint(ctx); err != nil {
					return err
				}

				call, err := feeCall(ctx, a, from, to, data)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIER\tBASE FEE\tMAX FEE\tPRIORITY FEE\tGAS PRICE\tGAS LIMIT\tETA")

				for _, tier := range tiers {
					est, err := a.Wallet.EstimateFees(ctx, tier, call)
					if err != nil {
						return err
					}

					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						tier,
						units.FormatGwei(est.BaseFee),
						units.FormatGwei(est.MaxFeePerGas),
						units.FormatGwei(est.MaxPriorityFeePerGas),
						units.FormatGwei(est.GasPrice),
						est.GasLimit,
						est.EstimatedTime)
				}

				fmt.Fprintln(w, "\nfees in gwei")

				return w.Flush()
			})
		},
	}

	cmd.Flags().String(fromFlag, "", "sender address, defaults to the selected wallet")
	cmd.Flags().String(toFlag, "", "recipient, defaults to the sender")
	cmd.Flags().String(dataFlag, "", "hex encoded call data")
	cmd.Flags().String(tierFlag, "", "only price this tier: slow, standard or fast")

	return cmd
}

func feeCall(ctx context.Context, a *app.App, from, to string, data []byte) (fee.Call, error) {
	from, err := sender(ctx, a, from)
	if err != nil {
		return fee.Call{}, err
	}

	if !common.IsHexAddress(from) {
		return fee.Call{}, errors.Errorf("invalid sender %q", from)
	}

	if to == "" {
		to = from
	}

	if !common.IsHexAddress(to) {
		return fee.Call{}, errors.Errorf("invalid recipient %q", to)
	}

	recipient := common.HexToAddress(to)

	return fee.Call{
		From:  common.HexToAddress(from),
		To:    &recipient,
		Value: new(big.Int),
		Data:  data,
	}, nil
}
