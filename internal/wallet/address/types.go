package address

import "fmt"

const (
	// PathTemplate is the BIP-44 path for Ethereum external accounts.
	PathTemplate = "m/44'/60'/0'/0/%d"

	privateKeyLength = 32
)

// DerivationPath returns the BIP-44 path of the account at index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf(PathTemplate, index)
}
