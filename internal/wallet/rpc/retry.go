package rpc

import (
	"context"
	"math/big"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/ethereum/go-ethereum/common"
)

// Policy bounds retries of read calls.
type Policy struct {
	// Attempts is the total number of tries, the first one included.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,                      //nolint:mnd
		BaseDelay: 200 * time.Millisecond, //nolint:mnd
		MaxDelay:  2 * time.Second,        //nolint:mnd
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}

	return delay
}

type retrying struct {
	next   Reader
	policy Policy
}

// Retrying wraps a Reader so TransportErrors are retried with exponential
// backoff. RPC and decoding errors are returned at once.
//
//nolint:ireturn // decorator returns the interface it wraps
func Retrying(next Reader, policy Policy) Reader {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	return &retrying{next: next, policy: policy}
}

func (r *retrying) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return retry(ctx, r.policy, methodGetBalance, func(ctx context.Context) (*big.Int, error) {
		return r.next.Balance(ctx, addr)
	})
}

func (r *retrying) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return retry(ctx, r.policy, methodGetTxCount, func(ctx context.Context) (uint64, error) {
		return r.next.PendingNonce(ctx, addr)
	})
}

func (r *retrying) FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*FeeHistory, error) {
	return retry(ctx, r.policy, methodFeeHistory, func(ctx context.Context) (*FeeHistory, error) {
		return r.next.FeeHistory(ctx, blocks, percentiles)
	})
}

func (r *retrying) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return retry(ctx, r.policy, methodEstimateGas, func(ctx context.Context) (uint64, error) {
		return r.next.EstimateGas(ctx, msg)
	})
}

func (r *retrying) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	return retry(ctx, r.policy, methodGetReceipt, func(ctx context.Context) (*Receipt, error) {
		return r.next.TransactionReceipt(ctx, hash)
	})
}

func retry[T any](ctx context.Context, policy Policy, method string, fn func(context.Context) (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || !IsTransport(err) || attempt >= policy.Attempts || ctx.Err() != nil {
			return v, err
		}

		delay := policy.Backoff(attempt)
		util.LogFromContext(ctx).Debug().
			Err(err).
			Str("method", method).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying RPC read")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
	}
}
