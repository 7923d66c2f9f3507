package keystore

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// decryptSecret opens a sealed secret. A wrong password surfaces as
// ErrInvalidPassword.
func decryptSecret(c *CryptoJSON, password string) ([]byte, error) {
	if c.KDF != kdfName || c.Cipher != cipherName {
		return nil, errors.Errorf("unsupported keystore crypto %s/%s", c.KDF, c.Cipher)
	}

	if c.KDFParams.DKLen < macKeyEnd {
		return nil, errors.Errorf("derived key length %d too short", c.KDFParams.DKLen)
	}

	salt, err := hex.DecodeString(c.KDFParams.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode salt")
	}

	//nolint:varnamelen // iv is a common abbreviation for initialization vector
	iv, err := hex.DecodeString(c.CipherParams.IV)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode IV")
	}

	if len(iv) != ivLength {
		return nil, errors.Errorf("invalid IV length %d", len(iv))
	}

	ciphertext, err := hex.DecodeString(c.Ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ciphertext")
	}

	expectedMAC, err := hex.DecodeString(c.MAC)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode MAC")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, c.KDFParams.N, c.KDFParams.R, c.KDFParams.P, c.KDFParams.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	defer zero(derivedKey)

	mac := calculateMAC(derivedKey[aesKeyLen:macKeyEnd], ciphertext)
	if subtle.ConstantTimeCompare(mac, expectedMAC) != 1 {
		return nil, ErrInvalidPassword
	}

	plaintext, err := aes128CTR(derivedKey[:aesKeyLen], iv, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt secret")
	}

	return plaintext, nil
}
