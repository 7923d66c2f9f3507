package fee

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Tier picks how aggressively to bid for inclusion. The zero value is
// TierStandard.
type Tier int

const (
	TierStandard Tier = iota
	TierSlow
	TierFast
)

var (
	ErrUnknownTier = errors.New("unknown fee tier")
	ErrNoFeeData   = errors.New("node returned no fee data")
)

// rewardPercentiles are requested from eth_feeHistory; column i belongs to
// the tier with percentileIndex i.
var rewardPercentiles = []float64{25, 50, 90}

func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slow":
		return TierSlow, nil
	case "standard", "":
		return TierStandard, nil
	case "fast":
		return TierFast, nil
	default:
		return 0, errors.Wrapf(ErrUnknownTier, "%q", s)
	}
}

func (t Tier) String() string {
	switch t {
	case TierSlow:
		return "slow"
	case TierFast:
		return "fast"
	default:
		return "standard"
	}
}

func (t Tier) percentileIndex() int {
	switch t {
	case TierSlow:
		return 0
	case TierFast:
		return 2 //nolint:mnd
	default:
		return 1
	}
}

// targetBlocks is the rough number of blocks until inclusion.
func (t Tier) targetBlocks() int64 {
	switch t {
	case TierSlow:
		return 6 //nolint:mnd
	case TierFast:
		return 1
	default:
		return 3 //nolint:mnd
	}
}

// Estimate is a priced gas budget for one transaction.
type Estimate struct {
	Tier                 Tier
	GasLimit             uint64
	BaseFee              *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	// GasPrice is baseFee + priority fee, used by legacy transactions.
	GasPrice      *big.Int
	EstimatedTime time.Duration
}

// MaxCost returns GasLimit * MaxFeePerGas.
func (e *Estimate) MaxCost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(e.GasLimit), e.MaxFeePerGas)
}

// EstimationError wraps whatever kept the estimator from producing a price.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string {
	return "fee estimation failed: " + e.Err.Error()
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// Call describes the transaction being priced. A non-zero GasLimit is used as
// is instead of being estimated.
type Call struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// Reader is the part of the node API the estimator uses.
type Reader interface {
	FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*rpc.FeeHistory, error)
	EstimateGas(ctx context.Context, msg rpc.CallMsg) (uint64, error)
}

type Config struct {
	// HistoryBlocks is the eth_feeHistory window.
	HistoryBlocks uint64
	// MinPriorityFee floors the tip.
	MinPriorityFee *big.Int
	// GasLimitCeiling is used when eth_estimateGas fails for a contract call.
	GasLimitCeiling uint64
	// BlockTime converts a tier into an EstimatedTime.
	BlockTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		HistoryBlocks:   10,               //nolint:mnd
		MinPriorityFee:  big.NewInt(1e9),  //nolint:mnd
		GasLimitCeiling: 500_000,          //nolint:mnd
		BlockTime:       12 * time.Second, //nolint:mnd
	}
}
