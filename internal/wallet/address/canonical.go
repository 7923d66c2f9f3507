package address

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var ErrInvalid = errors.New("invalid address")

// Parse accepts a 0x-prefixed 20 byte hex address. Mixed-case input must carry
// a valid EIP-55 checksum.
func Parse(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, errors.Wrapf(ErrInvalid, "%q lacks 0x prefix", s)
	}

	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalid, "%q", s)
	}

	addr := common.HexToAddress(s)

	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, errors.Wrapf(ErrInvalid, "%q has a bad checksum", s)
	}

	return addr, nil
}

// Canonical renders addr as lowercase 0x-hex, the form used as a storage key.
func Canonical(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
