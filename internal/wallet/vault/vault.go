// Package vault owns signing keys: it creates and restores them, keeps them
// encrypted at rest and unlocked in memory, and signs on behalf of the wallet.
package vault

import (
	"context"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/util/keymutex"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/chapool/wallet-core/internal/wallet/keystore"
	"github.com/chapool/wallet-core/internal/wallet/security"
	"github.com/chapool/wallet-core/internal/wallet/seed"
	"github.com/chapool/wallet-core/internal/wallet/signer"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Vault is safe for concurrent use. Writes for one address are serialized,
// different addresses proceed in parallel.
type Vault struct {
	keystore keystore.Service
	keyring  *seed.Keyring
	gate     security.Gate
	locks    *keymutex.Map
	cfg      Config
}

func New(ks keystore.Service, gate security.Gate, cfg Config) (*Vault, error) {
	if cfg.Password == "" {
		return nil, errors.New("vault password is required")
	}

	if cfg.EntropyBits == 0 {
		cfg.EntropyBits = seed.DefaultEntropyBits
	}

	return &Vault{
		keystore: ks,
		keyring:  seed.NewKeyring(),
		gate:     gate,
		locks:    keymutex.New(),
		cfg:      cfg,
	}, nil
}

// Create generates a new mnemonic and stores the key derived from it.
func (v *Vault) Create(ctx context.Context) (*Key, error) {
	mnemonic, err := seed.NewMnemonic(v.cfg.EntropyBits)
	if err != nil {
		return nil, err
	}

	key, err := v.importMnemonic(ctx, mnemonic, "")
	if err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Info().Str("address", address.Canonical(key.Address)).Msg("Created signing key")

	return key, nil
}

// Restore resolves cred to a stored key. found is false, with a nil error,
// when a StoredCredential matches nothing.
func (v *Vault) Restore(ctx context.Context, cred Credential) (*Key, bool, error) {
	switch c := cred.(type) {
	case MnemonicCredential:
		key, err := v.importMnemonic(ctx, c.Phrase, c.Passphrase)
		if err != nil {
			return nil, false, err
		}

		return key, true, nil
	case StoredCredential:
		return v.restoreStored(ctx, c.Address)
	default:
		return nil, false, errors.Wrapf(ErrInvalidCredential, "unsupported credential %T", cred)
	}
}

// Sign signs tx with the key of addr once gate accepts token.
func (v *Vault) Sign(ctx context.Context, addr common.Address, token security.Token, tx *transaction.Unsigned) (*transaction.Signed, error) {
	canonical := address.Canonical(addr)
	log := util.LogFromContext(ctx).With().Str("component", "vault").Str("address", canonical).Logger()

	unlock, err := v.locks.Lock(ctx, canonical)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := v.exists(ctx, canonical)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, errors.Wrapf(ErrKeyNotFound, "address %s", canonical)
	}

	if err := v.gate.Validate(ctx, token); err != nil {
		log.Warn().Err(err).Msg("Signing rejected by security gate")
		return nil, errors.WithMessage(ErrAuthenticationRequired, err.Error())
	}

	if tx.From != addr {
		return nil, &SigningError{Address: canonical, Err: signer.ErrFromMismatch}
	}

	privateKey, err := v.privateKey(ctx, canonical)
	if err != nil {
		return nil, err
	}
	defer address.Zero(privateKey)

	signed, err := signer.Sign(privateKey, tx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign transaction")
		return nil, &SigningError{Address: canonical, Err: err}
	}

	log.Debug().
		Str("tx_hash", signed.Hash.Hex()).
		Uint64("nonce", tx.Nonce).
		Str("type", tx.Type.String()).
		Msg("Transaction signed")

	return signed, nil
}

// Delete forgets the key of addr in memory and at rest. Deleting a missing key
// succeeds.
func (v *Vault) Delete(ctx context.Context, addr common.Address) error {
	canonical := address.Canonical(addr)

	unlock, err := v.locks.Lock(ctx, canonical)
	if err != nil {
		return err
	}
	defer unlock()

	v.keyring.Remove(canonical)

	if err := v.keystore.DeleteKeystore(ctx, canonical); err != nil {
		return errors.Wrap(err, "failed to delete keystore")
	}

	util.LogFromContext(ctx).Info().Str("address", canonical).Msg("Deleted signing key")

	return nil
}

func (v *Vault) Exists(ctx context.Context, addr common.Address) (bool, error) {
	return v.exists(ctx, address.Canonical(addr))
}

// List describes every key held at rest, oldest first.
func (v *Vault) List(ctx context.Context) ([]*Key, error) {
	stored, err := v.keystore.ListKeystores(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]*Key, 0, len(stored))
	for _, ks := range stored {
		keys = append(keys, keyFromKeystore(ks))
	}

	return keys, nil
}

// Lock zeroes every unlocked key and returns how many there were. Keys stay
// at rest and are unlocked again on demand.
func (v *Vault) Lock() int {
	return v.keyring.Clear()
}

func (v *Vault) importMnemonic(ctx context.Context, phrase string, passphrase string) (*Key, error) {
	s, err := seed.ToSeed(phrase, passphrase)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCredential, "mnemonic rejected")
	}
	defer address.Zero(s)

	path := address.DerivationPath(v.cfg.AccountIndex)

	privateKey, err := address.DerivePrivateKey(s, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive private key")
	}
	defer address.Zero(privateKey)

	addr, err := address.FromPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	canonical := address.Canonical(addr)

	unlock, err := v.locks.Lock(ctx, canonical)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ks, err := v.keystore.GetKeystore(ctx, canonical)
	switch {
	case err == nil:
		util.LogFromContext(ctx).Debug().Str("address", canonical).Msg("Key already stored, reusing keystore")
	case errors.Is(err, keystore.ErrNotFound):
		ks, err = v.keystore.CreateKeystore(ctx, canonical, path, privateKey, v.cfg.Password)
		if err != nil {
			return nil, errors.Wrap(err, "failed to store key")
		}
	default:
		return nil, err
	}

	v.keyring.Put(canonical, privateKey)

	return keyFromKeystore(ks), nil
}

func (v *Vault) restoreStored(ctx context.Context, addr string) (*Key, bool, error) {
	if addr == "" {
		stored, err := v.keystore.ListKeystores(ctx)
		if err != nil {
			return nil, false, err
		}

		switch len(stored) {
		case 0:
			return nil, false, nil
		case 1:
			addr = stored[0].Address
		default:
			return nil, false, errors.Wrapf(ErrInvalidCredential, "%d stored keys, an address is required", len(stored))
		}
	}

	parsed, err := address.Parse(addr)
	if err != nil {
		return nil, false, errors.Wrap(ErrInvalidCredential, err.Error())
	}

	canonical := address.Canonical(parsed)

	unlock, err := v.locks.Lock(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	ks, err := v.keystore.GetKeystore(ctx, canonical)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	privateKey, err := v.unlockKeystore(ctx, ks)
	if err != nil {
		return nil, false, err
	}
	address.Zero(privateKey)

	return keyFromKeystore(ks), true, nil
}

func (v *Vault) exists(ctx context.Context, canonical string) (bool, error) {
	if v.keyring.Has(canonical) {
		return true, nil
	}

	return v.keystore.Exists(ctx, canonical)
}

// privateKey returns a copy of the unlocked key of canonical, decrypting it
// from disk when it is not in memory. Callers hold the address lock.
func (v *Vault) privateKey(ctx context.Context, canonical string) ([]byte, error) {
	if privateKey, ok := v.keyring.Get(canonical); ok {
		return privateKey, nil
	}

	ks, err := v.keystore.GetKeystore(ctx, canonical)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, errors.Wrapf(ErrKeyNotFound, "address %s", canonical)
	}

	if err != nil {
		return nil, err
	}

	return v.unlockKeystore(ctx, ks)
}

// unlockKeystore decrypts ks, checks the key still controls ks.Address and
// caches it in the keyring.
func (v *Vault) unlockKeystore(ctx context.Context, ks *keystore.Keystore) ([]byte, error) {
	privateKey, err := v.keystore.DecryptSecret(ctx, ks, v.cfg.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unlock key")
	}

	derived, err := address.FromPrivateKey(privateKey)
	if err != nil {
		address.Zero(privateKey)
		return nil, errors.Wrap(err, "stored key is corrupt")
	}

	if address.Canonical(derived) != ks.Address {
		address.Zero(privateKey)
		return nil, errors.Errorf("stored key does not match address %s", ks.Address)
	}

	v.keyring.Put(ks.Address, privateKey)

	return privateKey, nil
}

func keyFromKeystore(ks *keystore.Keystore) *Key {
	return &Key{
		ID:             ks.ID,
		Address:        common.HexToAddress(ks.Address),
		DerivationPath: ks.DerivationPath,
		CreatedAt:      ks.CreatedAt,
	}
}
