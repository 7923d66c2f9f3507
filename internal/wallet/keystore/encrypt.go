package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 32
	ivLength   = 16 // AES block size
	aesKeyLen  = 16 // AES-128 uses the first half of the derived key
	macKeyEnd  = 32
)

// encryptSecret seals secret with a scrypt-derived key in AES-128-CTR.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func (s *service) encryptSecret(secret []byte, password string) (*CryptoJSON, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, s.params.N, s.params.R, s.params.P, s.params.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	defer zero(derivedKey)

	ciphertext, err := aes128CTR(derivedKey[:aesKeyLen], iv, secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt secret")
	}

	out := &CryptoJSON{
		Ciphertext: hex.EncodeToString(ciphertext),
		Cipher:     cipherName,
		KDF:        kdfName,
		MAC:        hex.EncodeToString(calculateMAC(derivedKey[aesKeyLen:macKeyEnd], ciphertext)),
	}
	out.CipherParams.IV = hex.EncodeToString(iv)
	out.KDFParams.DKLen = s.params.DKLen
	out.KDFParams.Salt = hex.EncodeToString(salt)
	out.KDFParams.N = s.params.N
	out.KDFParams.R = s.params.R
	out.KDFParams.P = s.params.P

	return out, nil
}

// aes128CTR is its own inverse: the same call encrypts and decrypts.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func aes128CTR(key []byte, iv []byte, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}

// calculateMAC computes keccak256(derivedKey[16:32] || ciphertext).
func calculateMAC(key []byte, ciphertext []byte) []byte {
	return crypto.Keccak256(key, ciphertext)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
