package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound            = errors.New("signing key not found")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidCredential      = errors.New("invalid credential")
)

// SigningError reports a signature that could not be produced for Address.
type SigningError struct {
	Address string
	Err     error
}

func (e *SigningError) Error() string {
	return "signing failed for " + e.Address + ": " + e.Err.Error()
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Key describes a stored signing key. It never carries key material.
type Key struct {
	ID             string
	Address        common.Address
	DerivationPath string
	CreatedAt      time.Time
}

// Credential is what Restore accepts: MnemonicCredential or StoredCredential.
type Credential interface {
	credential()
}

// MnemonicCredential restores from a BIP-39 phrase and optional passphrase.
type MnemonicCredential struct {
	Phrase     string
	Passphrase string
}

// StoredCredential restores a key already held at rest. An empty Address
// selects the only stored key.
type StoredCredential struct {
	Address string
}

func (MnemonicCredential) credential() {}
func (StoredCredential) credential()   {}

// Config holds the vault settings.
type Config struct {
	// Password encrypts keys at rest.
	Password string
	// AccountIndex is the last BIP-44 path component.
	AccountIndex uint32
	// EntropyBits sizes generated mnemonics.
	EntropyBits int
}
