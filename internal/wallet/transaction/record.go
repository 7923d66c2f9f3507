package transaction

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record tracks a broadcast transaction until it is mined.
type Record struct {
	Hash        common.Hash
	Status      Status
	BlockNumber *uint64
}

func NewPendingRecord(hash common.Hash) Record {
	return Record{Hash: hash, Status: StatusPending}
}

// Terminal reports whether the record can no longer change.
func (r Record) Terminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusFailed
}

// WithReceipt resolves a pending record from a receipt status and block
// number. Terminal records are returned unchanged.
func (r Record) WithReceipt(status uint64, blockNumber uint64) Record {
	if r.Terminal() {
		return r
	}

	next := Record{Hash: r.Hash, Status: StatusFailed, BlockNumber: &blockNumber}
	if status == types.ReceiptStatusSuccessful {
		next.Status = StatusConfirmed
	}

	return next
}
