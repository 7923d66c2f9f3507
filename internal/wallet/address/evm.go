package address

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
)

// DeriveAddress derives the account address of seed at path.
func DeriveAddress(seed []byte, path string) (common.Address, error) {
	privateKey, err := DerivePrivateKey(seed, path)
	if err != nil {
		return common.Address{}, err
	}
	defer Zero(privateKey)

	return FromPrivateKey(privateKey)
}

// DerivePrivateKey derives the 32 byte secp256k1 key of seed at path.
// WARNING: caller must Zero the returned key after use.
func DerivePrivateKey(seed []byte, path string) ([]byte, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	derivedKey, err := deriveKeyFromPath(masterKey, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key from path")
	}

	if len(derivedKey.Key) != privateKeyLength {
		return nil, errors.Errorf("derived key has unexpected length %d", len(derivedKey.Key))
	}

	privateKey := make([]byte, privateKeyLength)
	copy(privateKey, derivedKey.Key)

	return privateKey, nil
}

// FromPrivateKey returns the address controlled by privateKey.
func FromPrivateKey(privateKey []byte) (common.Address, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Zero overwrites secret in place.
func Zero(secret []byte) {
	for i := range secret {
		secret[i] = 0
	}
}

func deriveKeyFromPath(masterKey *bip32.Key, path string) (*bip32.Key, error) {
	indices, err := parseBIP44Path(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key, nil
}

// parseBIP44Path turns "m/44'/60'/0'/0/0" into child indices, hardened
// segments offset by bip32.FirstHardenedChild.
func parseBIP44Path(path string) ([]uint32, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != "m" {
		return nil, errors.Errorf("invalid derivation path %q", path)
	}

	indices := make([]uint32, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		hardened := strings.HasSuffix(segment, "'")
		segment = strings.TrimSuffix(segment, "'")

		index, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, errors.Errorf("invalid path segment %q in %q", segment, path)
		}

		child := uint32(index)
		if hardened {
			child += bip32.FirstHardenedChild
		}

		indices = append(indices, child)
	}

	return indices, nil
}
