package seed_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/chapool/wallet-core/internal/wallet/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

func TestNewMnemonic(t *testing.T) {
	m, err := seed.NewMnemonic(seed.DefaultEntropyBits)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)
	assert.True(t, bip39.IsMnemonicValid(m))

	other, err := seed.NewMnemonic(seed.DefaultEntropyBits)
	require.NoError(t, err)
	assert.NotEqual(t, m, other)

	_, err = seed.NewMnemonic(100)
	require.Error(t, err)
}

func TestToSeed(t *testing.T) {
	//nolint:dupword
	phrase := "  Abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon ABOUT "

	s, err := seed.ToSeed(phrase, "")
	require.NoError(t, err)
	assert.Len(t, s, 64)

	withPass, err := seed.ToSeed(phrase, "TREZOR")
	require.NoError(t, err)
	assert.NotEqual(t, s, withPass)

	//nolint:dupword
	_, err = seed.ToSeed("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", "")
	require.ErrorIs(t, err, seed.ErrInvalidMnemonic)
}

func TestKeyringCopiesAndZeroes(t *testing.T) {
	k := seed.NewKeyring()

	secret := []byte{1, 2, 3}
	k.Put("0xabc", secret)
	secret[0] = 9

	got, ok := k.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, _ := k.Get("0xabc")
	assert.Equal(t, []byte{1, 2, 3}, again)

	k.Remove("0xabc")
	assert.False(t, k.Has("0xabc"))
	k.Remove("0xabc")

	k.Put("a", []byte{1})
	k.Put("b", []byte{2})
	assert.Equal(t, 2, k.Clear())
	assert.False(t, k.Has("a"))
	assert.Equal(t, 0, k.Clear())
}

func TestKeyringConcurrentAccess(t *testing.T) {
	k := seed.NewKeyring()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := string(rune('a' + i))
			k.Put(addr, []byte{byte(i)})
			got, ok := k.Get(addr)
			assert.True(t, ok)
			assert.Equal(t, []byte{byte(i)}, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, k.Clear())
}
