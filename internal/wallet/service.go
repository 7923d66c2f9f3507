package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/util/keymutex"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/security"
	"github.com/chapool/wallet-core/internal/wallet/state"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/chapool/wallet-core/internal/wallet/txbuilder"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const backedUpValue = "true"

// Service manages wallets and sends transactions from them.
type Service interface {
	// CreateWallet generates a new key and selects its wallet.
	CreateWallet(ctx context.Context) (*Wallet, error)

	// RestoreWallet resolves cred to a wallet. found is false when nothing
	// could be restored, which is expected on first run.
	RestoreWallet(ctx context.Context, cred vault.Credential) (wallet *Wallet, found bool, err error)

	// Initialize unlocks the previously used wallet at startup.
	Initialize(ctx context.Context) (wallet *Wallet, found bool, err error)

	// DeleteWallet erases the key and every piece of state kept for address.
	DeleteWallet(ctx context.Context, address string) error

	Wallet(ctx context.Context, address string) (*Wallet, error)
	Wallets(ctx context.Context) ([]*Wallet, error)
	MarkBackedUp(ctx context.Context, address string) (*Wallet, error)
	SelectWallet(ctx context.Context, address string) (*Wallet, error)
	SelectedWallet(ctx context.Context) (*Wallet, error)

	IsSecuritySetup(ctx context.Context) (bool, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	EstimateFees(ctx context.Context, tier fee.Tier, call fee.Call) (*fee.Estimate, error)

	// Send builds, prices, signs and broadcasts a transaction, then waits for
	// its receipt. Sends from one address run one at a time.
	Send(ctx context.Context, req SendRequest) (*SendResult, error)

	// TrackReceipt polls a broadcast transaction until it is mined or the
	// confirm timeout passes.
	TrackReceipt(ctx context.Context, hash string) (transaction.Record, error)
}

type service struct {
	vault       KeyVault
	reader      rpc.Reader
	broadcaster rpc.Broadcaster
	gate        security.Gate
	store       state.Store
	recorder    Recorder

	builder   *txbuilder.Builder
	estimator *fee.Estimator
	locks     *keymutex.Map
	cfg       Config

	mu      sync.RWMutex
	wallets map[string]Wallet
}

// NewService wires a Service from its dependencies.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(deps Dependencies, cfg Config) (Service, error) {
	switch {
	case deps.Vault == nil:
		return nil, errors.New("vault is required")
	case deps.Reader == nil || deps.Broadcaster == nil:
		return nil, errors.New("rpc reader and broadcaster are required")
	case deps.Gate == nil:
		return nil, errors.New("security gate is required")
	case deps.Store == nil:
		return nil, errors.New("state store is required")
	case cfg.ChainID == nil || cfg.ChainID.Sign() <= 0:
		return nil, errors.New("chain id is required")
	}

	defaults := DefaultConfig(cfg.ChainID)
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaults.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}

	return &service{
		vault:       deps.Vault,
		reader:      deps.Reader,
		broadcaster: deps.Broadcaster,
		gate:        deps.Gate,
		store:       deps.Store,
		recorder:    deps.Recorder,
		builder: txbuilder.New(deps.Reader, txbuilder.Config{
			ChainID:      cfg.ChainID,
			MaxDataBytes: cfg.MaxDataBytes,
			Legacy:       cfg.Legacy,
		}),
		estimator: fee.NewEstimator(deps.Reader, cfg.Fees),
		locks:     keymutex.New(),
		cfg:       cfg,
		wallets:   make(map[string]Wallet),
	}, nil
}

func (s *service) CreateWallet(ctx context.Context) (*Wallet, error) {
	key, err := s.vault.Create(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key")
	}

	wallet, err := s.walletFromKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.reconcileSelection(ctx, wallet.Address); err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Info().Str("address", wallet.Address).Msg("Wallet created")

	return wallet, nil
}

func (s *service) RestoreWallet(ctx context.Context, cred vault.Credential) (*Wallet, bool, error) {
	log := util.LogFromContext(ctx).With().Str("component", "wallet_service").Logger()

	key, found, err := s.vault.Restore(ctx, cred)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to restore key")
	}

	if !found {
		log.Info().Msg("No wallet to restore")
		return nil, false, nil
	}

	wallet, err := s.walletFromKey(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if err := s.reconcileSelection(ctx, wallet.Address); err != nil {
		return nil, false, err
	}

	log.Info().Str("address", wallet.Address).Bool("backed_up", wallet.IsBackedUp).Msg("Wallet restored")

	return wallet, true, nil
}

func (s *service) DeleteWallet(ctx context.Context, addr string) error {
	parsed, err := parseAddress(addr)
	if err != nil {
		return err
	}
	canonical := address.Canonical(parsed)

	unlock, err := s.locks.Lock(ctx, canonical)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.vault.Delete(ctx, parsed); err != nil {
		return errors.Wrapf(err, "failed to delete key of %s", canonical)
	}

	s.mu.Lock()
	delete(s.wallets, canonical)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, state.BackupKey(canonical)); err != nil {
		return errors.Wrap(err, "failed to clear backup flag")
	}

	selected, ok, err := s.store.Get(ctx, state.KeySelectedAddress)
	if err != nil {
		return errors.Wrap(err, "failed to read selected address")
	}

	if ok && selected == canonical {
		if err := s.store.Delete(ctx, state.KeySelectedAddress); err != nil {
			return errors.Wrap(err, "failed to clear selected address")
		}
	}

	util.LogFromContext(ctx).Info().Str("address", canonical).Msg("Wallet deleted")

	return nil
}

func (s *service) Wallet(ctx context.Context, addr string) (*Wallet, error) {
	parsed, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	canonical := address.Canonical(parsed)

	s.mu.RLock()
	cached, ok := s.wallets[canonical]
	s.mu.RUnlock()

	if ok {
		return &cached, nil
	}

	wallets, err := s.Wallets(ctx)
	if err != nil {
		return nil, err
	}

	for _, w := range wallets {
		if w.Address == canonical {
			return w, nil
		}
	}

	return nil, errors.Wrapf(ErrWalletNotFound, "address %s", canonical)
}

// Wallets lists every wallet the vault holds a key for, oldest first.
func (s *service) Wallets(ctx context.Context) ([]*Wallet, error) {
	keys, err := s.vault.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list keys")
	}

	wallets := make([]*Wallet, 0, len(keys))
	for _, key := range keys {
		wallet, err := s.walletFromKey(ctx, key)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}

	return wallets, nil
}

func (s *service) MarkBackedUp(ctx context.Context, addr string) (*Wallet, error) {
	wallet, err := s.Wallet(ctx, addr)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, state.BackupKey(wallet.Address), backedUpValue); err != nil {
		return nil, errors.Wrap(err, "failed to persist backup flag")
	}

	backedUp := wallet.WithBackup()
	s.cache(backedUp)

	return &backedUp, nil
}

func (s *service) SelectWallet(ctx context.Context, addr string) (*Wallet, error) {
	wallet, err := s.Wallet(ctx, addr)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, state.KeySelectedAddress, wallet.Address); err != nil {
		return nil, errors.Wrap(err, "failed to persist selected address")
	}

	return wallet, nil
}

// SelectedWallet returns the persisted selection. A selection whose key is
// gone is cleared and reported as ErrNoSelection.
func (s *service) SelectedWallet(ctx context.Context) (*Wallet, error) {
	selected, ok, err := s.store.Get(ctx, state.KeySelectedAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read selected address")
	}

	if !ok {
		return nil, ErrNoSelection
	}

	wallet, err := s.Wallet(ctx, selected)
	if errors.Is(err, ErrWalletNotFound) || errors.Is(err, txbuilder.ErrInvalidAddress) {
		util.LogFromContext(ctx).Warn().Str("selected_address", selected).Msg("Clearing selection of unknown wallet")

		if err := s.store.Delete(ctx, state.KeySelectedAddress); err != nil {
			return nil, errors.Wrap(err, "failed to clear selected address")
		}

		return nil, ErrNoSelection
	}

	return wallet, err
}

func (s *service) IsSecuritySetup(ctx context.Context) (bool, error) {
	return s.gate.IsSecuritySetup(ctx)
}

func (s *service) Balance(ctx context.Context, addr string) (*big.Int, error) {
	parsed, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	return s.reader.Balance(ctx, parsed)
}

func (s *service) EstimateFees(ctx context.Context, tier fee.Tier, call fee.Call) (*fee.Estimate, error) {
	return s.estimator.Estimate(ctx, tier, call)
}

// reconcileSelection makes addr the selected wallet. The vault-derived
// address wins over whatever was persisted before.
func (s *service) reconcileSelection(ctx context.Context, addr string) error {
	persisted, ok, err := s.store.Get(ctx, state.KeySelectedAddress)
	if err != nil {
		return errors.Wrap(err, "failed to read selected address")
	}

	if ok && persisted == addr {
		return nil
	}

	if ok {
		util.LogFromContext(ctx).Warn().
			Str("persisted_address", persisted).
			Str("address", addr).
			Msg("Persisted selection disagrees with vault, overwriting")
	}

	if err := s.store.Set(ctx, state.KeySelectedAddress, addr); err != nil {
		return errors.Wrap(err, "failed to persist selected address")
	}

	return nil
}

func (s *service) walletFromKey(ctx context.Context, key *vault.Key) (*Wallet, error) {
	canonical := address.Canonical(key.Address)

	flag, _, err := s.store.Get(ctx, state.BackupKey(canonical))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read backup flag")
	}

	wallet := Wallet{
		ID:         key.ID,
		Address:    canonical,
		CreatedAt:  key.CreatedAt,
		IsBackedUp: flag == backedUpValue,
	}
	s.cache(wallet)

	return &wallet, nil
}

func (s *service) cache(w Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets[w.Address] = w
}

func parseAddress(s string) (common.Address, error) {
	addr, err := address.Parse(s)
	if err != nil {
		return common.Address{}, errors.Wrap(txbuilder.ErrInvalidAddress, err.Error())
	}

	return addr, nil
}
