package env

import (
	"encoding/json"
	"fmt"

	"github.com/chapool/wallet-core/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the effective configuration as JSON",
		Long: `Prints the configuration resolved from defaults, wallet.yaml and WALLET_* environment variables.
Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cfg.Vault.Password != "" {
				cfg.Vault.Password = redacted
			}
			if cfg.State.Redis.Password != "" {
				cfg.State.Redis.Password = redacted
			}

			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to encode configuration")
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
}
