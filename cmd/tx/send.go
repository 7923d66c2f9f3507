package tx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/txbuilder"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	valueFlag       = "value"
	gasLimitFlag    = "gas-limit"
	maxFeeFlag      = "max-fee-gwei"
	priorityFeeFlag = "priority-fee-gwei"
	gasPriceFlag    = "gas-price-gwei"
)

func newSend() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Signs, broadcasts and confirms a transaction",
		Long: `Sends --value ether (and optional --data) from the selected wallet to --to.
Fees come from the --tier estimate unless given explicitly. The PIN is asked for before signing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := sendRequest(cmd)
			if err != nil {
				return err
			}

			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.VerifyEndpoint(ctx); err != nil {
					return err
				}

				req.From, err = sender(ctx, a, req.From)
				if err != nil {
					return err
				}

				pin, err := command.PromptSecret("PIN: ")
				if err != nil {
					return err
				}

				req.Token, err = a.Gate.Authenticate(ctx, pin)
				if err != nil {
					return err
				}

				out := cmd.ErrOrStderr()
				req.OnState = func(s wallet.SendState) {
					fmt.Fprintf(out, "... %s\n", s)
				}

				result, sendErr := a.Wallet.Send(ctx, req)
				if result != nil && result.Transaction != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", result.Transaction.Hash.Hex(), result.State)
				}

				return sendErr
			})
		},
	}

	flags := cmd.Flags()
	flags.String(fromFlag, "", "sender address, defaults to the selected wallet")
	flags.String(toFlag, "", "recipient address, empty deploys --data as a contract")
	flags.String(valueFlag, "0", "amount in ether")
	flags.String(dataFlag, "", "hex encoded call data")
	flags.String(tierFlag, "standard", "fee tier: slow, standard or fast")
	flags.Uint64(gasLimitFlag, 0, "gas limit, estimated when zero")
	flags.String(maxFeeFlag, "", "max fee per gas in gwei")
	flags.String(priorityFeeFlag, "", "max priority fee per gas in gwei")
	flags.String(gasPriceFlag, "", "legacy gas price in gwei")

	return cmd
}

func sendRequest(cmd *cobra.Command) (wallet.SendRequest, error) {
	flags := cmd.Flags()
	from, _ := flags.GetString(fromFlag)
	to, _ := flags.GetString(toFlag)
	rawValue, _ := flags.GetString(valueFlag)
	rawData, _ := flags.GetString(dataFlag)
	rawTier, _ := flags.GetString(tierFlag)

	value, err := units.ParseEther(rawValue)
	if err != nil {
		return wallet.SendRequest{}, errors.Wrap(err, "invalid --value")
	}

	data, err := decodeData(rawData)
	if err != nil {
		return wallet.SendRequest{}, errors.Wrap(err, "invalid --data")
	}

	tier, err := fee.ParseTier(rawTier)
	if err != nil {
		return wallet.SendRequest{}, err
	}

	override, err := feeOverride(cmd)
	if err != nil {
		return wallet.SendRequest{}, err
	}

	return wallet.SendRequest{
		From:  from,
		To:    to,
		Value: value,
		Data:  data,
		Tier:  tier,
		Fees:  override,
	}, nil
}

// feeOverride returns nil when no fee flag was set.
func feeOverride(cmd *cobra.Command) (*txbuilder.Override, error) {
	flags := cmd.Flags()

	var (
		o   txbuilder.Override
		set bool
	)

	if flags.Changed(gasLimitFlag) {
		o.GasLimit, _ = flags.GetUint64(gasLimitFlag)
		set = true
	}

	gwei := map[string]**big.Int{
		maxFeeFlag:      &o.MaxFeePerGas,
		priorityFeeFlag: &o.MaxPriorityFeePerGas,
		gasPriceFlag:    &o.GasPrice,
	}

	for name, target := range gwei {
		if !flags.Changed(name) {
			continue
		}

		raw, _ := flags.GetString(name)

		v, err := units.ParseGwei(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", name)
		}

		*target = v
		set = true
	}

	if !set {
		return nil, nil
	}

	return &o, nil
}
