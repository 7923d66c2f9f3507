package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chapool/wallet-core/cmd/env"
	"github.com/chapool/wallet-core/cmd/security"
	"github.com/chapool/wallet-core/cmd/tx"
	"github.com/chapool/wallet-core/cmd/wallet"
	"github.com/chapool/wallet-core/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "wallet-core",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A self-custodial Ethereum wallet: keys, EIP-1559 fees, signing and broadcast.
Configured through wallet.yaml and WALLET_* environment variables.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		env.New(),
		security.New(),
		wallet.New(),
	)
	rootCmd.AddCommand(tx.New()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		stop()
		os.Exit(1) //nolint:gocritic
	}
}
