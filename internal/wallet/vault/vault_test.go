package vault_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/chapool/wallet-core/internal/wallet/keystore"
	"github.com/chapool/wallet-core/internal/wallet/security"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

//nolint:dupword
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const validToken security.Token = "ok"

var testAddress = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")

type tokenGate struct{}

func (tokenGate) IsSecuritySetup(context.Context) (bool, error) { return true, nil }

func (tokenGate) Validate(_ context.Context, token security.Token) error {
	if token != validToken {
		return security.ErrInvalidToken
	}
	return nil
}

func newVault(t *testing.T, dir string, password string) *vault.Vault {
	t.Helper()

	ks, err := keystore.NewService(dir, keystore.LightScryptParams())
	require.NoError(t, err)

	v, err := vault.New(ks, tokenGate{}, vault.Config{Password: password})
	require.NoError(t, err)

	return v
}

func transfer(from common.Address) *transaction.Unsigned {
	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")

	return &transaction.Unsigned{
		From:                 from,
		To:                   &to,
		Value:                units.Ether(1),
		Nonce:                5,
		GasLimit:             21000,
		MaxFeePerGas:         units.Gwei(30),
		MaxPriorityFeePerGas: units.Gwei(2),
		ChainID:              big.NewInt(1),
	}
}

func TestCreateAndSign(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	key, err := v.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, key.ID)
	assert.Equal(t, "m/44'/60'/0'/0/0", key.DerivationPath)
	assert.False(t, key.CreatedAt.IsZero())

	exists, err := v.Exists(ctx, key.Address)
	require.NoError(t, err)
	assert.True(t, exists)

	keys, err := v.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.Address, keys[0].Address)

	signed, err := v.Sign(ctx, key.Address, validToken, transfer(key.Address))
	require.NoError(t, err)

	sender, err := signed.Sender()
	require.NoError(t, err)
	assert.Equal(t, key.Address, sender)
}

func TestRestoreMnemonic(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	key, found, err := v.Restore(ctx, vault.MnemonicCredential{Phrase: testMnemonic})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testAddress, key.Address)

	again, found, err := v.Restore(ctx, vault.MnemonicCredential{Phrase: strings.ToUpper(testMnemonic)})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, key.ID, again.ID)

	withPassphrase, _, err := v.Restore(ctx, vault.MnemonicCredential{Phrase: testMnemonic, Passphrase: "extra"})
	require.NoError(t, err)
	assert.NotEqual(t, testAddress, withPassphrase.Address)

	//nolint:dupword
	_, found, err = v.Restore(ctx, vault.MnemonicCredential{Phrase: "abandon abandon abandon"})
	require.ErrorIs(t, err, vault.ErrInvalidCredential)
	assert.False(t, found)
}

func TestRestoreStoredAfterRestart(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()

	first := newVault(t, dir, "secret")
	_, _, err := first.Restore(ctx, vault.MnemonicCredential{Phrase: testMnemonic})
	require.NoError(t, err)

	second := newVault(t, dir, "secret")

	key, found, err := second.Restore(ctx, vault.StoredCredential{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testAddress, key.Address)

	key, found, err = second.Restore(ctx, vault.StoredCredential{Address: strings.ToLower(testAddress.Hex())})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testAddress, key.Address)

	wrongPassword := newVault(t, dir, "not the password")
	_, _, err = wrongPassword.Restore(ctx, vault.StoredCredential{})
	require.ErrorIs(t, err, keystore.ErrInvalidPassword)
}

func TestRestoreStoredNothingFound(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	key, found, err := v.Restore(ctx, vault.StoredCredential{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, key)

	_, found, err = v.Restore(ctx, vault.StoredCredential{Address: testAddress.Hex()})
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = v.Restore(ctx, vault.StoredCredential{Address: "nope"})
	require.ErrorIs(t, err, vault.ErrInvalidCredential)

	_, _, err = v.Restore(ctx, nil)
	require.ErrorIs(t, err, vault.ErrInvalidCredential)
}

func TestRestoreStoredAmbiguous(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	_, err := v.Create(ctx)
	require.NoError(t, err)
	_, err = v.Create(ctx)
	require.NoError(t, err)

	_, _, err = v.Restore(ctx, vault.StoredCredential{})
	require.ErrorIs(t, err, vault.ErrInvalidCredential)
}

func TestSignUnlocksOnDemand(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()

	v := newVault(t, dir, "secret")
	key, _, err := v.Restore(ctx, vault.MnemonicCredential{Phrase: testMnemonic})
	require.NoError(t, err)

	assert.Equal(t, 1, v.Lock())

	signed, err := v.Sign(ctx, key.Address, validToken, transfer(key.Address))
	require.NoError(t, err)
	sender, err := signed.Sender()
	require.NoError(t, err)
	assert.Equal(t, key.Address, sender)

	fresh := newVault(t, dir, "secret")
	_, err = fresh.Sign(ctx, key.Address, validToken, transfer(key.Address))
	require.NoError(t, err)
}

func TestDeleteThenSign(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	v := newVault(t, dir, "secret")

	key, err := v.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, v.Delete(ctx, key.Address))
	require.NoError(t, v.Delete(ctx, key.Address))

	_, err = v.Sign(ctx, key.Address, validToken, transfer(key.Address))
	require.ErrorIs(t, err, vault.ErrKeyNotFound)

	exists, err := v.Exists(ctx, key.Address)
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSignRequiresAuthentication(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	key, err := v.Create(ctx)
	require.NoError(t, err)

	_, err = v.Sign(ctx, key.Address, "forged", transfer(key.Address))
	require.ErrorIs(t, err, vault.ErrAuthenticationRequired)

	_, err = v.Sign(ctx, testAddress, "forged", transfer(testAddress))
	require.ErrorIs(t, err, vault.ErrKeyNotFound)
}

func TestSignRejectsForeignFrom(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	key, err := v.Create(ctx)
	require.NoError(t, err)

	_, err = v.Sign(ctx, key.Address, validToken, transfer(testAddress))

	var signingErr *vault.SigningError
	require.ErrorAs(t, err, &signingErr)
	assert.Equal(t, address.Canonical(key.Address), signingErr.Address)
}

func TestSecretNeverLeaks(t *testing.T) {
	var logs bytes.Buffer
	ctx := util.WithLogger(t.Context(), zerolog.New(&logs).Level(zerolog.DebugLevel))
	dir := t.TempDir()

	v := newVault(t, dir, "secret")
	key, _, err := v.Restore(ctx, vault.MnemonicCredential{Phrase: testMnemonic})
	require.NoError(t, err)

	signed, err := v.Sign(ctx, key.Address, validToken, transfer(key.Address))
	require.NoError(t, err)

	privateKey, err := address.DerivePrivateKey(bip39.NewSeed(testMnemonic, ""), address.DerivationPath(0))
	require.NoError(t, err)
	secretHex := hex.EncodeToString(privateKey)

	assert.NotEmpty(t, logs.String())
	assert.NotContains(t, logs.String(), secretHex)
	assert.NotContains(t, logs.String(), "abandon")
	assert.NotContains(t, fmt.Sprintf("%+v", signed), secretHex)
	assert.NotContains(t, fmt.Sprintf("%+v", key), secretHex)

	stored, err := os.ReadFile(filepath.Join(dir, address.Canonical(key.Address)+".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(stored), secretHex)
}

func TestConcurrentSigningAcrossAddresses(t *testing.T) {
	ctx := t.Context()
	v := newVault(t, t.TempDir(), "secret")

	keys := make([]*vault.Key, 3)
	for i := range keys {
		key, err := v.Create(ctx)
		require.NoError(t, err)
		keys[i] = key
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				signed, err := v.Sign(ctx, key.Address, validToken, transfer(key.Address))
				if assert.NoError(t, err) {
					sender, err := signed.Sender()
					assert.NoError(t, err)
					assert.Equal(t, key.Address, sender)
				}
			}()
		}
	}
	wg.Wait()
}
