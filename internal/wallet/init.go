package wallet

import (
	"context"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/state"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/pkg/errors"
)

// Initialize unlocks the wallet the process worked with last: the persisted
// selection when its key is still stored, otherwise the only stored key.
// Unlocking decrypts the key, so a wrong vault password fails here instead of
// at the first send. found is false on first run.
func (s *service) Initialize(ctx context.Context) (*Wallet, bool, error) {
	log := util.LogFromContext(ctx).With().Str("component", "wallet_init").Logger()

	selected, ok, err := s.store.Get(ctx, state.KeySelectedAddress)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read selected address")
	}

	if ok {
		wallet, found, err := s.RestoreWallet(ctx, vault.StoredCredential{Address: selected})
		if err != nil && !errors.Is(err, vault.ErrInvalidCredential) {
			return nil, false, err
		}

		if found {
			log.Info().Str("address", wallet.Address).Msg("Selected wallet unlocked")
			return wallet, true, nil
		}

		log.Warn().Str("selected_address", selected).Msg("Selected wallet has no stored key")
	}

	wallet, found, err := s.RestoreWallet(ctx, vault.StoredCredential{})
	if err != nil {
		return nil, false, err
	}

	if !found {
		log.Info().Msg("No stored wallet found. This is expected on first run")
		return nil, false, nil
	}

	log.Info().Str("address", wallet.Address).Msg("Stored wallet unlocked")

	return wallet, true, nil
}
