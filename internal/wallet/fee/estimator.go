// Package fee prices transactions from recent fee history.
package fee

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
)

const (
	transferGasLimit = 21000
	// eip1559FeeMultiplier leaves room for the base fee to double before
	// the transaction is priced out.
	eip1559FeeMultiplier = 2
)

type Estimator struct {
	reader Reader
	cfg    Config
}

func NewEstimator(reader Reader, cfg Config) *Estimator {
	if cfg.MinPriorityFee == nil {
		cfg.MinPriorityFee = DefaultConfig().MinPriorityFee
	}

	if cfg.HistoryBlocks == 0 {
		cfg.HistoryBlocks = DefaultConfig().HistoryBlocks
	}

	return &Estimator{reader: reader, cfg: cfg}
}

// Estimate prices call for tier:
//
//	baseFee      = base fee of the newest mined block in the window
//	priorityFee  = max(median of the tier's reward column, MinPriorityFee)
//	maxFeePerGas = 2*baseFee + priorityFee
//
// The node computes the tier's percentile within each block; the median is
// then taken across blocks.
func (e *Estimator) Estimate(ctx context.Context, tier Tier, call Call) (*Estimate, error) {
	log := util.LogFromContext(ctx).With().Str("component", "fee_estimator").Str("tier", tier.String()).Logger()

	history, err := e.reader.FeeHistory(ctx, e.cfg.HistoryBlocks, rewardPercentiles)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch fee history")
		return nil, &EstimationError{Err: err}
	}

	baseFee, priorityFee, err := e.fromHistory(history, tier)
	if err != nil {
		return nil, &EstimationError{Err: err}
	}

	gasLimit, err := e.GasLimit(ctx, call)
	if err != nil {
		return nil, err
	}

	maxFee := new(big.Int).Mul(baseFee, big.NewInt(eip1559FeeMultiplier))
	maxFee.Add(maxFee, priorityFee)

	est := &Estimate{
		Tier:                 tier,
		GasLimit:             gasLimit,
		BaseFee:              baseFee,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priorityFee,
		GasPrice:             new(big.Int).Add(baseFee, priorityFee),
		EstimatedTime:        e.cfg.BlockTime * time.Duration(tier.targetBlocks()),
	}

	log.Debug().
		Str("base_fee", baseFee.String()).
		Str("max_priority_fee_per_gas", priorityFee.String()).
		Str("max_fee_per_gas", maxFee.String()).
		Uint64("gas_limit", gasLimit).
		Msg("Fee estimated")

	return est, nil
}

// GasLimit returns the gas budget for call. Plain transfers use the fixed
// transfer cost; anything touching code asks the node and falls back to the
// configured ceiling when the node cannot estimate.
func (e *Estimator) GasLimit(ctx context.Context, call Call) (uint64, error) {
	if call.GasLimit > 0 {
		return call.GasLimit, nil
	}

	kind := transaction.KindOf(call.To, call.Data)
	if kind == transaction.KindTransfer {
		return transferGasLimit, nil
	}

	gas, err := e.reader.EstimateGas(ctx, rpc.CallMsg{
		From:  call.From,
		To:    call.To,
		Value: call.Value,
		Data:  call.Data,
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, &EstimationError{Err: ctx.Err()}
		}

		util.LogFromContext(ctx).Warn().
			Err(err).
			Str("kind", kind.String()).
			Uint64("fallback_gas_limit", e.cfg.GasLimitCeiling).
			Msg("Gas estimation failed, using configured ceiling")

		return e.cfg.GasLimitCeiling, nil
	}

	return gas, nil
}

func (e *Estimator) fromHistory(history *rpc.FeeHistory, tier Tier) (*big.Int, *big.Int, error) {
	baseFee := history.LatestBaseFee()
	if baseFee == nil || baseFee.Sign() < 0 {
		return nil, nil, ErrNoFeeData
	}

	column := tier.percentileIndex()
	samples := make([]*big.Int, 0, len(history.Reward))
	for _, row := range history.Reward {
		if column < len(row) && row[column] != nil {
			samples = append(samples, row[column])
		}
	}

	if len(samples) == 0 {
		return nil, nil, ErrNoFeeData
	}

	priorityFee := new(big.Int).Set(median(samples))
	if priorityFee.Cmp(e.cfg.MinPriorityFee) < 0 {
		priorityFee.Set(e.cfg.MinPriorityFee)
	}

	return new(big.Int).Set(baseFee), priorityFee, nil
}

// median returns the nearest-rank 50th percentile of samples.
func median(samples []*big.Int) *big.Int {
	sorted := make([]*big.Int, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})

	return sorted[(len(sorted)+1)/2-1]
}
