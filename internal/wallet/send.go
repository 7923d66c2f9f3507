package wallet

import (
	"context"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/chapool/wallet-core/internal/wallet/txbuilder"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// sendRun tracks the state of one Send call.
type sendRun struct {
	svc    *service
	req    SendRequest
	result *SendResult
	log    zerolog.Logger
}

func (r *sendRun) enter(state SendState) {
	r.result.State = state
	r.log.Debug().Str("state", state.String()).Msg("Send state changed")

	if r.req.OnState != nil {
		r.req.OnState(state)
	}
}

// fail moves the send to Failed. The returned result still carries whatever
// the send produced before it stopped.
func (r *sendRun) fail(at SendState, err error) (*SendResult, error) {
	r.log.Error().Err(err).Str("failed_state", at.String()).Msg("Send failed")
	r.enter(StateFailed)
	r.svc.record(StateFailed)

	return r.result, &SendError{State: at, Err: err}
}

func (r *sendRun) finish(state SendState) (*SendResult, error) {
	r.enter(state)
	r.svc.record(state)

	return r.result, nil
}

//nolint:funlen
func (s *service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	run := &sendRun{
		svc:    s,
		req:    req,
		result: &SendResult{},
		log:    util.LogFromContext(ctx).With().Str("component", "wallet_send").Str("from", req.From).Logger(),
	}

	run.enter(StateBuilding)

	from, err := parseAddress(req.From)
	if err != nil {
		return run.fail(StateBuilding, err)
	}
	canonical := address.Canonical(from)

	// Held until Confirming ends so the next send from this address reads a
	// pending nonce that includes this transaction.
	unlock, err := s.locks.Lock(ctx, canonical)
	if err != nil {
		return run.fail(StateBuilding, err)
	}
	defer unlock()

	draft, err := s.builder.Build(ctx, txbuilder.Request{
		From:  from,
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
		Fees:  req.Fees,
	})
	if err != nil {
		return run.fail(StateBuilding, err)
	}

	run.enter(StateFeeEstimating)

	if req.Fees.Complete(s.cfg.Legacy) {
		gasLimit, err := s.estimator.GasLimit(ctx, draft.Call())
		if err != nil {
			return run.fail(StateFeeEstimating, err)
		}
		draft.ApplyOverride(gasLimit)
	} else {
		est, err := s.estimator.Estimate(ctx, req.Tier, draft.Call())
		if err != nil {
			return run.fail(StateFeeEstimating, err)
		}
		run.result.Estimate = est
		draft.ApplyEstimate(est)
	}

	if err := draft.Affordable(); err != nil {
		return run.fail(StateFeeEstimating, err)
	}

	run.enter(StateSigning)

	signed, err := s.vault.Sign(ctx, from, req.Token, &draft.Tx)
	if err != nil {
		return run.fail(StateSigning, err)
	}
	run.result.Transaction = signed

	run.log = run.log.With().Str("tx_hash", signed.Hash.Hex()).Uint64("nonce", signed.Nonce).Logger()

	// Last point where the caller can still back out.
	if err := ctx.Err(); err != nil {
		return run.fail(StateSigning, err)
	}

	run.enter(StateBroadcasting)

	hash, err := s.broadcaster.SendRawTransaction(context.WithoutCancel(ctx), signed.Raw())
	if err != nil {
		return run.fail(StateBroadcasting, &BroadcastError{Hash: signed.Hash, Err: err})
	}

	if hash != signed.Hash {
		run.log.Warn().Str("node_hash", hash.Hex()).Msg("Node reported a different transaction hash")
	}

	record := transaction.NewPendingRecord(signed.Hash)
	run.result.Record = &record

	run.log.Info().
		Str("max_fee_per_gas", signed.FeeCap().String()).
		Uint64("gas_limit", signed.GasLimit).
		Str("kind", signed.Kind().String()).
		Msg("Transaction broadcast")

	run.enter(StateConfirming)

	record = s.awaitReceipt(ctx, record)
	run.result.Record = &record

	switch record.Status {
	case transaction.StatusConfirmed:
		run.log.Info().Uint64("block_number", *record.BlockNumber).Msg("Transaction confirmed")
		return run.finish(StateConfirmed)
	case transaction.StatusFailed:
		run.log.Warn().Uint64("block_number", *record.BlockNumber).Msg("Transaction reverted")
		return run.finish(StateFailed)
	default:
		run.log.Warn().Msg("Transaction not mined before confirm timeout, leaving it pending")
		return run.finish(StatePending)
	}
}

func (s *service) TrackReceipt(ctx context.Context, hash string) (transaction.Record, error) {
	raw, err := hexutil.Decode(hash)
	if err != nil || len(raw) != common.HashLength {
		return transaction.Record{}, errors.Errorf("invalid transaction hash %q", hash)
	}

	return s.awaitReceipt(ctx, transaction.NewPendingRecord(common.BytesToHash(raw))), nil
}

// awaitReceipt polls for the receipt of rec until it is mined, the confirm
// timeout passes or ctx ends. Lookup errors are logged and polling goes on;
// an unresolved record comes back pending.
func (s *service) awaitReceipt(ctx context.Context, rec transaction.Record) transaction.Record {
	log := util.LogFromContext(ctx).With().Str("tx_hash", rec.Hash.Hex()).Logger()

	localCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.reader.TransactionReceipt(localCtx, rec.Hash)
		if err == nil && receipt != nil {
			return rec.WithReceipt(receipt.Status, receipt.BlockNumber)
		}

		if err != nil && localCtx.Err() == nil {
			log.Warn().Err(err).Msg("Failed to fetch receipt, will retry")
		}

		select {
		case <-localCtx.Done():
			return rec
		case <-ticker.C:
		}
	}
}

func (s *service) record(state SendState) {
	if s.recorder != nil {
		s.recorder.ObserveSend(state.String())
	}
}
