// Package command holds helpers shared by the cobra commands.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/chapool/wallet-core/internal/config"
	"github.com/chapool/wallet-core/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func NewSubcommandGroup(name string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Various %s related subcommands", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}

// ConfigureLogger applies the logger settings to the global zerolog logger.
func ConfigureLogger(cfg config.Logger) error {
	level, err := cfg.ZerologLevel()
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
		}))
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	return nil
}

// WithApp configures logging, assembles an App and runs f with it. The
// metrics endpoint is served for as long as f runs when enabled. The App is
// shut down once f returns.
func WithApp(ctx context.Context, cfg config.Service, password string, f func(ctx context.Context, a *app.App) error) error {
	if err := ConfigureLogger(cfg.Logger); err != nil {
		return err
	}

	ctx = util.WithLogger(ctx, log.Logger)

	a, err := app.New(ctx, cfg, password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize wallet")
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if errs := a.Shutdown(shutdownCtx); len(errs) > 0 {
			log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down wallet")
		}
	}()

	if cfg.Metrics.Enabled {
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()

		go func() {
			if err := a.Metrics.Serve(metricsCtx, cfg.Metrics.ListenAddress); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	if err := f(ctx, a); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// RunWithApp loads the configuration, resolves the vault password and runs f
// inside WithApp.
func RunWithApp(cmd *cobra.Command, f func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	password, err := VaultPassword(cfg.Vault)
	if err != nil {
		return err
	}

	return WithApp(cmd.Context(), cfg, password, f)
}
