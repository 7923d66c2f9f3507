package wallet

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet/seed"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/spf13/cobra"
)

const entropyBitsFlag = "entropy-bits"

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Creates a wallet from a new recovery phrase",
		Long: `Generates a BIP-39 recovery phrase, prints it once and stores the derived key encrypted.
Write the phrase down, then confirm with "wallet backed-up <address>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bits, err := cmd.Flags().GetInt(entropyBitsFlag)
			if err != nil {
				return err
			}

			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if bits == 0 {
					bits = a.Config.Vault.EntropyBits
				}

				phrase, err := seed.NewMnemonic(bits)
				if err != nil {
					return err
				}

				w, _, err := a.Wallet.RestoreWallet(ctx, vault.MnemonicCredential{Phrase: phrase})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Recovery phrase (shown once, keep it offline):")
				fmt.Fprintf(out, "\n  %s\n\n", phrase)
				printWallet(out, w)

				return nil
			})
		},
	}

	cmd.Flags().Int(entropyBitsFlag, 0, "entropy of the recovery phrase: 128 (12 words) to 256 (24 words)")

	return cmd
}
