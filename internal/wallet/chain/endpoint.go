// Package chain describes the network a wallet talks to.
package chain

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/jellydator/validation"
)

var rpcURLPattern = regexp.MustCompile(`^(https?|wss?)://\S+$`)

// Endpoint identifies one EVM network and the JSON-RPC node used to reach it.
// It is passed by value and never mutated after construction.
type Endpoint struct {
	ChainID      int64
	RPCURL       string
	NativeSymbol string

	// BlockTime is the average block interval, used for confirmation time hints.
	BlockTime time.Duration
	// LegacyFees selects pre-London (gasPrice) transactions.
	LegacyFees bool
}

// ChainIDBig returns the chain id as used by transaction signers.
func (e Endpoint) ChainIDBig() *big.Int {
	return big.NewInt(e.ChainID)
}

func (e Endpoint) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ChainID, validation.Required, validation.Min(int64(1))),
		validation.Field(&e.RPCURL, validation.Required, validation.Match(rpcURLPattern)),
		validation.Field(&e.NativeSymbol, validation.Required),
		validation.Field(&e.BlockTime, validation.Min(time.Duration(0))),
	)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("chain %d (%s) via %s", e.ChainID, e.NativeSymbol, e.RPCURL)
}
