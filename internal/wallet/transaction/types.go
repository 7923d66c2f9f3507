// Package transaction holds the transaction values that flow through a send:
// the unsigned draft, the signed envelope and the record tracked after
// broadcast.
package transaction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Type selects the fee model of a transaction.
type Type uint8

const (
	// DynamicFee is an EIP-1559 transaction priced by MaxFeePerGas/MaxPriorityFeePerGas.
	DynamicFee Type = iota
	// Legacy is a pre-London transaction priced by GasPrice.
	Legacy
)

func (t Type) String() string {
	if t == Legacy {
		return "legacy"
	}

	return "dynamic-fee"
}

// Kind classifies what a transaction does. It is derived from To and Data and
// never set by hand.
type Kind int

const (
	KindTransfer Kind = iota + 1
	KindContractCall
	KindContractCreation
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindContractCall:
		return "contract_call"
	case KindContractCreation:
		return "contract_creation"
	default:
		return "unknown"
	}
}

// KindOf classifies a transaction by its recipient and payload.
func KindOf(to *common.Address, data []byte) Kind {
	switch {
	case to == nil:
		return KindContractCreation
	case len(data) > 0:
		return KindContractCall
	default:
		return KindTransfer
	}
}

var ErrFeeCapBelowTip = errors.New("max priority fee per gas exceeds max fee per gas")

// Unsigned is a fully priced transaction awaiting a signature. To is nil for
// contract creation. GasPrice is only used by Legacy transactions.
type Unsigned struct {
	From                 common.Address
	To                   *common.Address
	Value                *big.Int
	Data                 []byte
	Nonce                uint64
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
	ChainID              *big.Int
	Type                 Type
}

func (u *Unsigned) Kind() Kind {
	return KindOf(u.To, u.Data)
}

// FeeCap returns the highest price per gas this transaction may pay.
func (u *Unsigned) FeeCap() *big.Int {
	if u.Type == Legacy {
		return u.GasPrice
	}

	return u.MaxFeePerGas
}

// MaxCost returns Value + GasLimit*FeeCap, the most the sender can be charged.
func (u *Unsigned) MaxCost() *big.Int {
	cost := new(big.Int).SetUint64(u.GasLimit)
	if feeCap := u.FeeCap(); feeCap != nil {
		cost.Mul(cost, feeCap)
	} else {
		cost.SetUint64(0)
	}

	if u.Value != nil {
		cost.Add(cost, u.Value)
	}

	return cost
}

// Validate checks the fields required before signing.
func (u *Unsigned) Validate() error {
	if u.ChainID == nil || u.ChainID.Sign() <= 0 {
		return errors.New("chain id is required")
	}

	if u.Value == nil || u.Value.Sign() < 0 {
		return errors.New("value must be a non-negative amount")
	}

	if u.GasLimit == 0 {
		return errors.New("gas limit is required")
	}

	if u.Type == Legacy {
		if u.GasPrice == nil || u.GasPrice.Sign() < 0 {
			return errors.New("gas price is required for legacy transactions")
		}

		return nil
	}

	if u.MaxFeePerGas == nil || u.MaxPriorityFeePerGas == nil {
		return errors.New("max fee and max priority fee are required")
	}

	if u.MaxFeePerGas.Sign() < 0 || u.MaxPriorityFeePerGas.Sign() < 0 {
		return errors.New("fees must be non-negative")
	}

	if u.MaxPriorityFeePerGas.Cmp(u.MaxFeePerGas) > 0 {
		return ErrFeeCapBelowTip
	}

	return nil
}

// Tx converts the draft into a go-ethereum transaction ready for signing.
func (u *Unsigned) Tx() *types.Transaction {
	if u.Type == Legacy {
		return types.NewTx(&types.LegacyTx{
			Nonce:    u.Nonce,
			GasPrice: u.GasPrice,
			Gas:      u.GasLimit,
			To:       u.To,
			Value:    u.Value,
			Data:     u.Data,
		})
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   u.ChainID,
		Nonce:     u.Nonce,
		GasTipCap: u.MaxPriorityFeePerGas,
		GasFeeCap: u.MaxFeePerGas,
		Gas:       u.GasLimit,
		To:        u.To,
		Value:     u.Value,
		Data:      u.Data,
	})
}
