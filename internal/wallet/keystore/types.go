package keystore

import (
	"time"

	"github.com/pkg/errors"
)

const (
	keystoreVersion = 3
	cipherName      = "aes-128-ctr"
	kdfName         = "scrypt"
)

var (
	ErrNotFound        = errors.New("keystore not found")
	ErrAlreadyExists   = errors.New("keystore already exists")
	ErrInvalidPassword = errors.New("invalid password: MAC mismatch")
)

// Keystore is one encrypted key file. The crypto section follows the
// Ethereum keystore v3 layout; the remaining fields are plain metadata.
type Keystore struct {
	Version        int        `json:"version"`
	ID             string     `json:"id"`
	Address        string     `json:"address"`
	DerivationPath string     `json:"derivation_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Crypto         CryptoJSON `json:"crypto"`
}

// CryptoJSON is the "crypto" object of an Ethereum keystore v3 file.
type CryptoJSON struct {
	Ciphertext   string `json:"ciphertext"`
	CipherParams struct {
		IV string `json:"iv"`
	} `json:"cipherparams"`
	Cipher    string `json:"cipher"`
	KDF       string `json:"kdf"`
	KDFParams struct {
		DKLen int    `json:"dklen"`
		Salt  string `json:"salt"`
		N     int    `json:"n"`
		R     int    `json:"r"`
		P     int    `json:"p"`
	} `json:"kdfparams"`
	MAC string `json:"mac"`
}

// ScryptParams defines scrypt KDF parameters
type ScryptParams struct {
	DKLen int // Derived key length (32 bytes)
	N     int // CPU/memory cost parameter
	R     int // Block size parameter
	P     int // Parallelization parameter
}

// DefaultScryptParams returns the standard Ethereum keystore v3 parameters.
func DefaultScryptParams() ScryptParams {
	const (
		scryptDKLen = 32
		scryptN     = 262144 // 2^18
		scryptR     = 8
		scryptP     = 1
	)

	return ScryptParams{
		DKLen: scryptDKLen,
		N:     scryptN,
		R:     scryptR,
		P:     scryptP,
	}
}

// LightScryptParams trades strength for speed. Tests and throwaway
// development vaults only.
func LightScryptParams() ScryptParams {
	const (
		scryptDKLen = 32
		scryptN     = 4096 // 2^12
		scryptR     = 8
		scryptP     = 1
	)

	return ScryptParams{
		DKLen: scryptDKLen,
		N:     scryptN,
		R:     scryptR,
		P:     scryptP,
	}
}
