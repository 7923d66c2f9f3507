package wallet

import (
	"context"
	"fmt"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/util/command"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/spf13/cobra"
)

const (
	storedFlag     = "stored"
	addressFlag    = "address"
	passphraseFlag = "passphrase"
)

func newRestore() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restores a wallet from a recovery phrase or from the keystore",
		Long: `Without flags, prompts for a recovery phrase and stores the derived key.
With --stored, unlocks a key already in the keystore: the one given by --address, or the only one present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stored, err := cmd.Flags().GetBool(storedFlag)
			if err != nil {
				return err
			}

			addr, err := cmd.Flags().GetString(addressFlag)
			if err != nil {
				return err
			}

			askPassphrase, err := cmd.Flags().GetBool(passphraseFlag)
			if err != nil {
				return err
			}

			return command.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				var cred vault.Credential = vault.StoredCredential{Address: addr}

				if !stored {
					phrase, err := command.PromptSecret("Recovery phrase: ")
					if err != nil {
						return err
					}

					mnemonic := vault.MnemonicCredential{Phrase: phrase}
					if askPassphrase {
						if mnemonic.Passphrase, err = command.PromptSecret("BIP-39 passphrase: "); err != nil {
							return err
						}
					}
					cred = mnemonic
				}

				w, found, err := a.Wallet.RestoreWallet(ctx, cred)
				if err != nil {
					return err
				}

				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored wallet found")
					return nil
				}

				printWallet(cmd.OutOrStdout(), w)

				return nil
			})
		},
	}

	cmd.Flags().Bool(storedFlag, false, "unlock a key from the keystore instead of a recovery phrase")
	cmd.Flags().String(addressFlag, "", "address of the stored key, with --stored")
	cmd.Flags().Bool(passphraseFlag, false, "prompt for a BIP-39 passphrase as well")

	return cmd
}
