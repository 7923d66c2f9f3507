// Package seed handles BIP-39 mnemonics and the in-memory keyring of unlocked
// keys.
package seed

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// DefaultEntropyBits yields a 12 word mnemonic.
const DefaultEntropyBits = 128

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// NewMnemonic generates a fresh mnemonic from bits of entropy (128-256, a
// multiple of 32).
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate entropy")
	}
	defer zero(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "failed to build mnemonic")
	}

	return mnemonic, nil
}

// Normalize lowercases the phrase and collapses whitespace.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ToSeed validates phrase and stretches it into a 64 byte BIP-39 seed.
// WARNING: caller must zero the returned seed after use.
func ToSeed(phrase string, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(Normalize(phrase), passphrase)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidMnemonic, err.Error())
	}

	return seed, nil
}
