// Package txbuilder turns a send request into an unsigned transaction using
// fresh chain state.
package txbuilder

import (
	"context"
	"math/big"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDataTooLarge        = errors.New("transaction data too large")
	ErrInvalidFee          = errors.New("invalid fee")
)

// DefaultMaxDataBytes matches the usual node limit on transaction size.
const DefaultMaxDataBytes = 128 * 1024

// Reader is the part of the node API the builder uses.
type Reader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
}

type Config struct {
	ChainID      *big.Int
	MaxDataBytes int
	// Legacy builds gasPrice transactions instead of EIP-1559 ones.
	Legacy bool
}

// Override replaces estimated fees. MaxFeePerGas and MaxPriorityFeePerGas go
// together; GasPrice is the legacy equivalent. A zero GasLimit is estimated.
type Override struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// Complete reports whether the override prices the transaction on its own.
func (o *Override) Complete(legacy bool) bool {
	if o == nil {
		return false
	}

	if legacy {
		return o.GasPrice != nil
	}

	return o.MaxFeePerGas != nil && o.MaxPriorityFeePerGas != nil
}

func (o *Override) validate() error {
	if o == nil {
		return nil
	}

	for _, v := range []*big.Int{o.MaxFeePerGas, o.MaxPriorityFeePerGas, o.GasPrice} {
		if v != nil && v.Sign() < 0 {
			return errors.Wrap(ErrInvalidFee, "fees must be non-negative")
		}
	}

	if (o.MaxFeePerGas == nil) != (o.MaxPriorityFeePerGas == nil) {
		return errors.Wrap(ErrInvalidFee, "max fee and max priority fee must be set together")
	}

	if o.MaxFeePerGas != nil && o.MaxPriorityFeePerGas.Cmp(o.MaxFeePerGas) > 0 {
		return errors.Wrap(ErrInvalidFee, "max priority fee exceeds max fee")
	}

	return nil
}

// Request is what the caller wants to send. An empty To creates a contract
// from Data.
type Request struct {
	From  common.Address
	To    string
	Value *big.Int
	Data  []byte
	Fees  *Override
}

// Draft is a transaction with nonce and value fixed but fees not yet applied,
// plus the balance it was checked against.
type Draft struct {
	Tx      transaction.Unsigned
	Balance *big.Int
	Fees    *Override
}

// Call is the fee estimation input for the draft.
func (d *Draft) Call() fee.Call {
	call := fee.Call{
		From:  d.Tx.From,
		To:    d.Tx.To,
		Value: d.Tx.Value,
		Data:  d.Tx.Data,
	}

	if d.Fees != nil {
		call.GasLimit = d.Fees.GasLimit
	}

	return call
}

// ApplyEstimate prices the draft from est, letting override fields win.
func (d *Draft) ApplyEstimate(est *fee.Estimate) {
	d.Tx.GasLimit = est.GasLimit
	d.Tx.MaxFeePerGas = est.MaxFeePerGas
	d.Tx.MaxPriorityFeePerGas = est.MaxPriorityFeePerGas
	d.Tx.GasPrice = est.GasPrice

	if d.Fees == nil {
		return
	}

	if d.Fees.GasLimit > 0 {
		d.Tx.GasLimit = d.Fees.GasLimit
	}

	if d.Fees.MaxFeePerGas != nil {
		d.Tx.MaxFeePerGas = d.Fees.MaxFeePerGas
		d.Tx.MaxPriorityFeePerGas = d.Fees.MaxPriorityFeePerGas
	}

	if d.Fees.GasPrice != nil {
		d.Tx.GasPrice = d.Fees.GasPrice
	}
}

// ApplyOverride prices the draft from a complete override and gasLimit.
func (d *Draft) ApplyOverride(gasLimit uint64) {
	d.Tx.GasLimit = gasLimit
	d.Tx.MaxFeePerGas = d.Fees.MaxFeePerGas
	d.Tx.MaxPriorityFeePerGas = d.Fees.MaxPriorityFeePerGas
	d.Tx.GasPrice = d.Fees.GasPrice
}

// Affordable checks value + gasLimit*feeCap against the balance seen at build
// time.
func (d *Draft) Affordable() error {
	cost := d.Tx.MaxCost()
	if cost.Cmp(d.Balance) > 0 {
		return errors.Wrapf(ErrInsufficientBalance, "need %s wei including gas, have %s", cost, d.Balance)
	}

	return nil
}

type Builder struct {
	reader Reader
	cfg    Config
}

func New(reader Reader, cfg Config) *Builder {
	if cfg.MaxDataBytes == 0 {
		cfg.MaxDataBytes = DefaultMaxDataBytes
	}

	return &Builder{reader: reader, cfg: cfg}
}

// Build validates req locally, then reads the balance and, only if the value
// is covered, the pending nonce.
func (b *Builder) Build(ctx context.Context, req Request) (*Draft, error) {
	to, err := b.validate(req)
	if err != nil {
		return nil, err
	}

	log := util.LogFromContext(ctx).With().
		Str("component", "tx_builder").
		Str("from", address.Canonical(req.From)).
		Logger()

	balance, err := b.reader.Balance(ctx, req.From)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch balance")
	}

	if req.Value.Cmp(balance) > 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance, "value %s wei exceeds balance %s wei", req.Value, balance)
	}

	nonce, err := b.reader.PendingNonce(ctx, req.From)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch nonce")
	}

	txType := transaction.DynamicFee
	if b.cfg.Legacy {
		txType = transaction.Legacy
	}

	draft := &Draft{
		Tx: transaction.Unsigned{
			From:    req.From,
			To:      to,
			Value:   new(big.Int).Set(req.Value),
			Data:    append([]byte(nil), req.Data...),
			Nonce:   nonce,
			ChainID: b.cfg.ChainID,
			Type:    txType,
		},
		Balance: balance,
		Fees:    req.Fees,
	}

	log.Debug().
		Uint64("nonce", nonce).
		Str("balance", balance.String()).
		Str("kind", draft.Tx.Kind().String()).
		Msg("Transaction drafted")

	return draft, nil
}

func (b *Builder) validate(req Request) (*common.Address, error) {
	var to *common.Address
	if req.To != "" {
		parsed, err := address.Parse(req.To)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidAddress, err.Error())
		}
		to = &parsed
	} else if len(req.Data) == 0 {
		return nil, errors.Wrap(ErrInvalidAddress, "recipient is required unless deploying a contract")
	}

	if req.Value == nil || req.Value.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "value must be a non-negative amount of wei")
	}

	if len(req.Data) > b.cfg.MaxDataBytes {
		return nil, errors.Wrapf(ErrDataTooLarge, "%d bytes, limit %d", len(req.Data), b.cfg.MaxDataBytes)
	}

	if err := req.Fees.validate(); err != nil {
		return nil, err
	}

	return to, nil
}
