package wallet_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// fakeNode is an in-memory chain for one account. Broadcasting a
// transaction bumps the pending nonce; receipts appear once mined is set.
type fakeNode struct {
	mu sync.Mutex

	balance   *big.Int
	nonce     uint64
	mined     bool
	reverted  bool
	feeErr    error
	sendErr   error
	onBalance func()

	calls []string
	sent  []*types.Transaction
}

func newFakeNode() *fakeNode {
	return &fakeNode{balance: units.Ether(10), mined: true}
}

func (n *fakeNode) called(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, method)
}

func (n *fakeNode) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.calls...)
}

func (n *fakeNode) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]*types.Transaction(nil), n.sent...)
}

func (n *fakeNode) Balance(context.Context, common.Address) (*big.Int, error) {
	n.called("eth_getBalance")

	if n.onBalance != nil {
		n.onBalance()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return new(big.Int).Set(n.balance), nil
}

func (n *fakeNode) PendingNonce(context.Context, common.Address) (uint64, error) {
	n.called("eth_getTransactionCount")

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.nonce, nil
}

func (n *fakeNode) FeeHistory(context.Context, uint64, []float64) (*rpc.FeeHistory, error) {
	n.called("eth_feeHistory")

	if n.feeErr != nil {
		return nil, n.feeErr
	}

	return &rpc.FeeHistory{
		OldestBlock:  big.NewInt(100),
		BaseFee:      []*big.Int{units.Gwei(20), units.Gwei(21)},
		Reward:       [][]*big.Int{{units.Gwei(1), units.Gwei(2), units.Gwei(5)}},
		GasUsedRatio: []float64{0.5},
	}, nil
}

func (n *fakeNode) EstimateGas(context.Context, rpc.CallMsg) (uint64, error) {
	n.called("eth_estimateGas")
	return 60_000, nil
}

func (n *fakeNode) SendRawTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	n.called("eth_sendRawTransaction")

	if n.sendErr != nil {
		return common.Hash{}, n.sendErr
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, errors.Wrap(err, "bad raw transaction")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if tx.Nonce() != n.nonce {
		return common.Hash{}, &rpc.RPCError{Method: "eth_sendRawTransaction", Code: -32000, Message: "nonce too low"}
	}

	n.nonce++
	n.sent = append(n.sent, tx)

	return tx.Hash(), nil
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*rpc.Receipt, error) {
	n.called("eth_getTransactionReceipt")

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mined {
		return nil, nil //nolint:nilnil
	}

	status := types.ReceiptStatusSuccessful
	if n.reverted {
		status = types.ReceiptStatusFailed
	}

	for i, tx := range n.sent {
		if tx.Hash() == hash {
			return &rpc.Receipt{TxHash: hash, Status: status, BlockNumber: uint64(100 + i)}, nil
		}
	}

	return nil, nil //nolint:nilnil
}
