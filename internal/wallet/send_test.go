package wallet_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/chapool/wallet-core/internal/wallet"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/chapool/wallet-core/internal/wallet/txbuilder"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "0x000000000000000000000000000000000000dEaD"

// stateLog collects the transitions of one send.
type stateLog struct {
	mu     sync.Mutex
	states []wallet.SendState
}

func (l *stateLog) add(s wallet.SendState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.states = append(l.states, s)
}

func (l *stateLog) all() []wallet.SendState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]wallet.SendState(nil), l.states...)
}

func transferRequest(log *stateLog) wallet.SendRequest {
	req := wallet.SendRequest{
		From:  testAddress,
		To:    recipient,
		Value: units.Ether(1),
		Tier:  fee.TierStandard,
		Token: validToken,
	}

	if log != nil {
		req.OnState = log.add
	}

	return req
}

func requireSendError(t *testing.T, err error, state wallet.SendState) *wallet.SendError {
	t.Helper()

	var sendErr *wallet.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, state, sendErr.State)

	return sendErr
}

func TestSendTransferConfirmed(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	log := &stateLog{}
	res, err := f.svc.Send(t.Context(), transferRequest(log))
	require.NoError(t, err)

	assert.Equal(t, []wallet.SendState{
		wallet.StateBuilding,
		wallet.StateFeeEstimating,
		wallet.StateSigning,
		wallet.StateBroadcasting,
		wallet.StateConfirming,
		wallet.StateConfirmed,
	}, log.all())
	assert.Equal(t, wallet.StateConfirmed, res.State)

	require.NotNil(t, res.Estimate)
	assert.Equal(t, units.Gwei(42), res.Estimate.MaxFeePerGas)
	assert.Equal(t, units.Gwei(2), res.Estimate.MaxPriorityFeePerGas)

	tx := res.Transaction
	require.NotNil(t, tx)
	assert.Equal(t, uint64(0), tx.Nonce)
	assert.Equal(t, uint64(21000), tx.GasLimit)
	assert.Equal(t, transaction.DynamicFee, tx.Type)
	assert.Equal(t, transaction.KindTransfer, tx.Kind())

	sender, err := tx.Sender()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), sender)

	sent := f.node.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, tx.Hash, sent[0].Hash())

	require.NotNil(t, res.Record)
	assert.Equal(t, transaction.StatusConfirmed, res.Record.Status)
	require.NotNil(t, res.Record.BlockNumber)
	assert.Equal(t, uint64(100), *res.Record.BlockNumber)

	assert.Equal(t, []string{"confirmed"}, f.recorder.States())
}

func TestSendInsufficientBalanceSkipsNonce(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.balance = units.Gwei(500_000_000)

	log := &stateLog{}
	res, err := f.svc.Send(t.Context(), transferRequest(log))
	require.ErrorIs(t, err, txbuilder.ErrInsufficientBalance)
	requireSendError(t, err, wallet.StateBuilding)

	assert.Equal(t, wallet.StateFailed, res.State)
	assert.Equal(t, []wallet.SendState{wallet.StateBuilding, wallet.StateFailed}, log.all())
	assert.Equal(t, []string{"eth_getBalance"}, f.node.Calls())
	assert.Equal(t, []string{"failed"}, f.recorder.States())
}

func TestSendGasMakesItUnaffordable(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.balance = units.Ether(1)

	_, err := f.svc.Send(t.Context(), transferRequest(nil))
	require.ErrorIs(t, err, txbuilder.ErrInsufficientBalance)
	requireSendError(t, err, wallet.StateFeeEstimating)
	assert.Empty(t, f.node.Sent())
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	tests := map[string]struct {
		mutate func(*wallet.SendRequest)
		want   error
	}{
		"bad sender":    {func(r *wallet.SendRequest) { r.From = "alice" }, txbuilder.ErrInvalidAddress},
		"bad recipient": {func(r *wallet.SendRequest) { r.To = "0x1234" }, txbuilder.ErrInvalidAddress},
		"no value":      {func(r *wallet.SendRequest) { r.Value = nil }, txbuilder.ErrInvalidAmount},
		"negative":      {func(r *wallet.SendRequest) { r.Value = big.NewInt(-1) }, txbuilder.ErrInvalidAmount},
		"tip over cap": {func(r *wallet.SendRequest) {
			r.Fees = &txbuilder.Override{MaxFeePerGas: units.Gwei(1), MaxPriorityFeePerGas: units.Gwei(2)}
		}, txbuilder.ErrInvalidFee},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := transferRequest(nil)
			tt.mutate(&req)

			res, err := f.svc.Send(t.Context(), req)
			require.ErrorIs(t, err, tt.want)
			requireSendError(t, err, wallet.StateBuilding)
			assert.Equal(t, wallet.StateFailed, res.State)
		})
	}

	assert.Empty(t, f.node.Calls())
}

func TestSendFeeEstimationFailure(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.feeErr = &rpc.TransportError{Method: "eth_feeHistory", Err: errors.New("connection refused")}

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	requireSendError(t, err, wallet.StateFeeEstimating)

	var estErr *fee.EstimationError
	require.ErrorAs(t, err, &estErr)
	assert.True(t, rpc.IsTransport(err))

	assert.Equal(t, wallet.StateFailed, res.State)
	assert.Nil(t, res.Transaction)
	assert.Empty(t, f.node.Sent())
}

func TestSendCompleteOverrideSkipsFeeHistory(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	req := transferRequest(nil)
	req.Fees = &txbuilder.Override{MaxFeePerGas: units.Gwei(50), MaxPriorityFeePerGas: units.Gwei(3)}

	res, err := f.svc.Send(t.Context(), req)
	require.NoError(t, err)

	assert.Nil(t, res.Estimate)
	assert.Equal(t, units.Gwei(50), res.Transaction.MaxFeePerGas)
	assert.Equal(t, units.Gwei(3), res.Transaction.MaxPriorityFeePerGas)
	assert.NotContains(t, f.node.Calls(), "eth_feeHistory")
}

func TestSendContractCallEstimatesGas(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	req := transferRequest(nil)
	req.Value = big.NewInt(0)
	req.Data = []byte{0xa9, 0x05, 0x9c, 0xbb}

	res, err := f.svc.Send(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, transaction.KindContractCall, res.Transaction.Kind())
	assert.Equal(t, uint64(60_000), res.Transaction.GasLimit)
	assert.Contains(t, f.node.Calls(), "eth_estimateGas")
}

func TestSendLegacy(t *testing.T) {
	f := newFixture(t, func(c *wallet.Config) { c.Legacy = true })
	f.restore(t)

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, transaction.Legacy, res.Transaction.Type)
	assert.Equal(t, units.Gwei(22), res.Transaction.GasPrice)

	sent := f.node.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint8(types.LegacyTxType), sent[0].Type())
}

func TestSendRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	req := transferRequest(nil)
	req.Token = "expired"

	res, err := f.svc.Send(t.Context(), req)
	require.ErrorIs(t, err, vault.ErrAuthenticationRequired)
	requireSendError(t, err, wallet.StateSigning)
	assert.Equal(t, wallet.StateFailed, res.State)
	assert.Empty(t, f.node.Sent())
}

func TestSendAfterDeleteFindsNoKey(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	require.NoError(t, f.svc.DeleteWallet(t.Context(), testAddress))

	_, err := f.svc.Send(t.Context(), transferRequest(nil))
	require.ErrorIs(t, err, vault.ErrKeyNotFound)
	requireSendError(t, err, wallet.StateSigning)
	assert.Empty(t, f.node.Sent())
}

func TestSendBroadcastFailure(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.sendErr = &rpc.RPCError{Method: "eth_sendRawTransaction", Code: -32000, Message: "already known"}

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	requireSendError(t, err, wallet.StateBroadcasting)

	var broadcastErr *wallet.BroadcastError
	require.ErrorAs(t, err, &broadcastErr)
	assert.Equal(t, res.Transaction.Hash, broadcastErr.Hash)

	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)

	assert.Equal(t, wallet.StateFailed, res.State)
	assert.Nil(t, res.Record)
	assert.Equal(t, []string{"failed"}, f.recorder.States())
}

func TestSendBroadcastTimeoutIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.sendErr = &rpc.TransportError{Method: "eth_sendRawTransaction", Err: context.DeadlineExceeded}

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	requireSendError(t, err, wallet.StateBroadcasting)
	assert.True(t, rpc.IsTransport(err))
	assert.Equal(t, wallet.StateFailed, res.State)

	count := func(method string) int {
		n := 0
		for _, c := range f.node.Calls() {
			if c == method {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("eth_sendRawTransaction"))

	f.node.mu.Lock()
	f.node.sendErr = nil
	f.node.mu.Unlock()

	res, err = f.svc.Send(t.Context(), transferRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, wallet.StateConfirmed, res.State)
	assert.Equal(t, 2, count("eth_getTransactionCount"))
	assert.Equal(t, 2, count("eth_sendRawTransaction"))
}

func TestSendCancelledBeforeBroadcast(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	req := transferRequest(nil)
	req.OnState = func(s wallet.SendState) {
		if s == wallet.StateFeeEstimating {
			cancel()
		}
	}

	res, err := f.svc.Send(ctx, req)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, wallet.StateFailed, res.State)
	assert.NotContains(t, f.node.Calls(), "eth_sendRawTransaction")
}

func TestSendEndsPendingWhenReceiptIsLate(t *testing.T) {
	f := newFixture(t, func(c *wallet.Config) { c.ConfirmTimeout = 50 * time.Millisecond })
	f.restore(t)
	f.node.mined = false

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, wallet.StatePending, res.State)
	require.NotNil(t, res.Record)
	assert.Equal(t, transaction.StatusPending, res.Record.Status)
	assert.Nil(t, res.Record.BlockNumber)
	assert.Equal(t, []string{"pending"}, f.recorder.States())

	f.node.mu.Lock()
	f.node.mined = true
	f.node.mu.Unlock()

	record, err := f.svc.TrackReceipt(t.Context(), res.Transaction.Hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusConfirmed, record.Status)
}

func TestSendRevertedTransactionFails(t *testing.T) {
	f := newFixture(t)
	f.restore(t)
	f.node.reverted = true

	res, err := f.svc.Send(t.Context(), transferRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, wallet.StateFailed, res.State)
	assert.Equal(t, transaction.StatusFailed, res.Record.Status)
}

func TestSendSerializesPerAddress(t *testing.T) {
	f := newFixture(t)
	f.restore(t)

	const sends = 3

	var wg sync.WaitGroup
	results := make([]*wallet.SendResult, sends)
	errs := make([]error, sends)

	for i := range sends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.Send(t.Context(), transferRequest(nil))
		}()
	}
	wg.Wait()

	nonces := make(map[uint64]bool)
	for i := range sends {
		require.NoError(t, errs[i])
		assert.Equal(t, wallet.StateConfirmed, results[i].State)
		nonces[results[i].Transaction.Nonce] = true
	}

	assert.Equal(t, map[uint64]bool{0: true, 1: true, 2: true}, nonces)
}

func TestTrackReceiptRejectsBadHash(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.TrackReceipt(t.Context(), "0x1234")
	require.Error(t, err)
}

func TestSendStateString(t *testing.T) {
	assert.Equal(t, "fee_estimating", wallet.StateFeeEstimating.String())
	assert.True(t, wallet.StatePending.Terminal())
	assert.False(t, wallet.StateConfirming.Terminal())
}
