package transaction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Signed is an Unsigned transaction plus its signature, hash and canonical
// encoding. It is never modified after construction.
type Signed struct {
	Unsigned

	V, R, S *big.Int
	Hash    common.Hash

	raw []byte
}

// NewSigned captures a go-ethereum transaction signed from u.
func NewSigned(u Unsigned, tx *types.Transaction) (*Signed, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode signed transaction")
	}

	v, r, s := tx.RawSignatureValues()

	return &Signed{
		Unsigned: u,
		V:        v,
		R:        r,
		S:        s,
		Hash:     tx.Hash(),
		raw:      raw,
	}, nil
}

// Raw returns a copy of the encoded transaction as sent to eth_sendRawTransaction.
func (s *Signed) Raw() []byte {
	raw := make([]byte, len(s.raw))
	copy(raw, s.raw)

	return raw
}

func (s *Signed) RawHex() string {
	return hexutil.Encode(s.raw)
}

// Sender recovers the signing address from the encoded transaction.
func (s *Signed) Sender() (common.Address, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(s.raw); err != nil {
		return common.Address{}, errors.Wrap(err, "failed to decode signed transaction")
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), &tx)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover sender")
	}

	return sender, nil
}
