package address_test

import (
	"testing"

	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

//nolint:dupword
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveAddress(t *testing.T) {
	seed := bip39.NewSeed(testMnemonic, "")

	addr, err := address.DeriveAddress(seed, address.DerivationPath(0))
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr.Hex())

	next, err := address.DeriveAddress(seed, address.DerivationPath(1))
	require.NoError(t, err)
	assert.NotEqual(t, addr, next)
}

func TestDerivePrivateKeyMatchesAddress(t *testing.T) {
	seed := bip39.NewSeed(testMnemonic, "")

	key, err := address.DerivePrivateKey(seed, "m/44'/60'/0'/0/0")
	require.NoError(t, err)
	require.Len(t, key, 32)

	addr, err := address.FromPrivateKey(key)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr.Hex())

	address.Zero(key)
	assert.Equal(t, make([]byte, 32), key)
}

func TestDerivePrivateKeyRejectsBadPath(t *testing.T) {
	seed := bip39.NewSeed(testMnemonic, "")

	for _, path := range []string{"", "44'/60'", "m/44'/x/0", "m/44'/60'/0'/0/-1", "m//0"} {
		_, err := address.DerivePrivateKey(seed, path)
		require.Error(t, err, path)
	}
}

func TestParse(t *testing.T) {
	addr, err := address.Parse("0x9858effd232b4033e47d90003d41ec34ecaeda94")
	require.NoError(t, err)
	assert.Equal(t, "0x9858effd232b4033e47d90003d41ec34ecaeda94", address.Canonical(addr))

	_, err = address.Parse("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	require.NoError(t, err)

	for _, in := range []string{
		"",
		"9858effd232b4033e47d90003d41ec34ecaeda94",
		"0x9858effd232b4033e47d90003d41ec34ecaeda",
		"0xzz58effd232b4033e47d90003d41ec34ecaeda94",
		"0x9858efFD232B4033E47d90003D41EC34EcaEda94",
	} {
		_, err := address.Parse(in)
		require.ErrorIs(t, err, address.ErrInvalid, in)
	}
}
