// Package units converts between wei and the human denominations used on the
// command line.
package units

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	gweiDecimals  = 9
	etherDecimals = 18
)

var ErrInvalidAmount = errors.New("invalid amount")

// Gwei returns n gwei in wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e9)) //nolint:mnd
}

// Ether returns n ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) //nolint:mnd
}

// ParseEther parses a decimal ether amount ("0.25") into wei.
func ParseEther(s string) (*big.Int, error) {
	return parse(s, etherDecimals)
}

// ParseGwei parses a decimal gwei amount ("1.5") into wei.
func ParseGwei(s string) (*big.Int, error) {
	return parse(s, gweiDecimals)
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	return format(wei, etherDecimals)
}

// FormatGwei renders wei as a decimal gwei string without trailing zeros.
func FormatGwei(wei *big.Int) string {
	return format(wei, gweiDecimals)
}

func parse(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}

	if d.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", s)
	}

	wei := d.Shift(decimals)
	if !wei.IsInteger() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimal places", s, decimals)
	}

	return wei.BigInt(), nil
}

func format(wei *big.Int, decimals int32) string {
	if wei == nil {
		return "0"
	}

	return decimal.NewFromBigInt(wei, -decimals).String()
}
