// Package app assembles the wallet from its configuration.
package app

import (
	"context"

	"github.com/chapool/wallet-core/internal/config"
	"github.com/chapool/wallet-core/internal/metrics"
	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet"
	"github.com/chapool/wallet-core/internal/wallet/keystore"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/security"
	"github.com/chapool/wallet-core/internal/wallet/state"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrChainIDMismatch = errors.New("node serves a different chain")

// App is a central struct keeping all the dependencies of one process.
type App struct {
	Config  config.Service
	RPC     *rpc.Client
	Store   state.Store
	Gate    *security.PINGate
	Vault   *vault.Vault
	Metrics *metrics.Service
	Wallet  wallet.Service

	redis *redis.Client
}

// New wires every component. password unlocks the keystore. No call reaches
// the node until a command needs it, see VerifyEndpoint.
func New(ctx context.Context, cfg config.Service, password string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
	}

	if err := a.init(ctx, password); err != nil {
		a.Shutdown(ctx)
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context, password string) error {
	cfg := a.Config

	opts := cfg.RPCOptions()
	opts.Observer = a.Metrics

	client, err := rpc.Dial(ctx, cfg.Network.RPCURL, opts)
	if err != nil {
		return errors.Wrap(err, "failed to dial node")
	}
	a.RPC = client

	store, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	a.Store = store

	a.Gate = security.NewPINGate(store, cfg.Security.TokenTTL, cfg.Security.BcryptCost)

	ks, err := keystore.NewService(cfg.Vault.Dir, cfg.ScryptParams())
	if err != nil {
		return errors.Wrap(err, "failed to open keystore")
	}

	v, err := vault.New(ks, a.Gate, cfg.VaultConfig(password))
	if err != nil {
		return errors.Wrap(err, "failed to create vault")
	}
	a.Vault = v

	walletCfg, err := cfg.WalletConfig()
	if err != nil {
		return err
	}

	svc, err := wallet.NewService(wallet.Dependencies{
		Vault:       v,
		Reader:      rpc.Retrying(client, cfg.RetryPolicy()),
		Broadcaster: client,
		Gate:        a.Gate,
		Store:       store,
		Recorder:    a.Metrics,
	}, walletCfg)
	if err != nil {
		return errors.Wrap(err, "failed to create wallet service")
	}
	a.Wallet = svc

	return nil
}

//nolint:ireturn // backend is chosen by configuration
func (a *App) newStore(ctx context.Context) (state.Store, error) {
	cfg := a.Config.State

	switch cfg.Backend {
	case config.StateBackendMemory:
		return state.NewMemoryStore(), nil
	case config.StateBackendRedis:
		client, err := state.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client

		return state.NewRedisStore(client, cfg.Redis.Prefix), nil
	default:
		store, err := state.NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open state file")
		}

		return store, nil
	}
}

// VerifyEndpoint checks that the node serves the configured chain. Skipped
// when rpc.verify_chain_id is off.
func (a *App) VerifyEndpoint(ctx context.Context) error {
	if !a.Config.RPC.VerifyChainID {
		return nil
	}

	endpoint := a.Config.Endpoint()

	id, err := a.RPC.ChainID(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to query %s", endpoint)
	}

	if id.Cmp(endpoint.ChainIDBig()) != 0 {
		return errors.Wrapf(ErrChainIDMismatch, "expected %d, node reports %s", endpoint.ChainID, id)
	}

	util.LogFromContext(ctx).Debug().Str("endpoint", endpoint.String()).Msg("Endpoint verified")

	return nil
}

// Shutdown zeroes unlocked keys and closes connections.
func (a *App) Shutdown(_ context.Context) []error {
	log.Debug().Msg("Shutting down wallet")

	var errs []error

	if a.Vault != nil {
		log.Debug().Int("keys", a.Vault.Lock()).Msg("Locked vault")
	}

	if a.RPC != nil {
		a.RPC.Close()
	}

	if a.redis != nil {
		log.Debug().Msg("Closing redis connection")

		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			log.Error().Err(err).Msg("Failed to close redis connection")
			errs = append(errs, err)
		}
	}

	return errs
}
