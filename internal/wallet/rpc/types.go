package rpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-only part of the node API. Implementations may be
// wrapped with Retrying.
type Reader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*FeeHistory, error)
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)
	// TransactionReceipt returns nil without error for unknown or unmined hashes.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// Broadcaster submits signed transactions. It is never retried: a resend
// after an ambiguous failure could double spend.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// Observer receives one notification per completed call.
type Observer interface {
	ObserveCall(method string, outcome string, duration time.Duration)
}

// FeeHistory is the decoded result of eth_feeHistory. Reward holds one row per
// block and one column per requested percentile.
type FeeHistory struct {
	OldestBlock  *big.Int
	Reward       [][]*big.Int
	BaseFee      []*big.Int
	GasUsedRatio []float64
}

// LatestBaseFee returns the base fee of the newest block in the window, or
// nil when the response does not cover it. baseFeePerGas carries one entry
// more than the block count; that trailing entry is the projected base fee of
// the next block and is skipped.
func (h *FeeHistory) LatestBaseFee() *big.Int {
	if h == nil {
		return nil
	}

	blocks := len(h.GasUsedRatio)
	if blocks == 0 {
		blocks = len(h.Reward)
	}

	if blocks == 0 || blocks > len(h.BaseFee) {
		return nil
	}

	return h.BaseFee[blocks-1]
}

// Receipt is the subset of a transaction receipt the wallet tracks.
type Receipt struct {
	TxHash            common.Hash
	BlockHash         common.Hash
	BlockNumber       uint64
	Status            uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	ContractAddress   *common.Address
}

// CallMsg is the transaction shape passed to eth_estimateGas.
type CallMsg struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
}
