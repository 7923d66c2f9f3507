// Package rpc is a thin JSON-RPC 2.0 client for the handful of eth_* methods
// the wallet needs. Every failure is classified as RPCError, TransportError or
// DecodingError; the client itself never retries.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

const (
	methodChainID            = "eth_chainId"
	methodGetBalance         = "eth_getBalance"
	methodGetTxCount         = "eth_getTransactionCount"
	methodFeeHistory         = "eth_feeHistory"
	methodEstimateGas        = "eth_estimateGas"
	methodSendRawTransaction = "eth_sendRawTransaction"
	methodGetReceipt         = "eth_getTransactionReceipt"
)

// Caller is the transport underneath the client; *gethrpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type Options struct {
	// ReadTimeout bounds each read call, WriteTimeout each broadcast and
	// ReceiptTimeout each receipt lookup. A zero ReceiptTimeout falls back to
	// ReadTimeout; zero everywhere leaves the call bounded only by its context.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReceiptTimeout time.Duration
	Observer       Observer
}

type Client struct {
	caller Caller
	close  func()
	opts   Options
}

// Dial connects to an http(s) or ws(s) endpoint.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, &TransportError{Method: "dial", Err: err}
	}

	client := NewClient(c, opts)
	client.close = c.Close

	return client, nil
}

func NewClient(caller Caller, opts Options) *Client {
	return &Client{caller: caller, opts: opts}
}

func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.read(ctx, &id, methodChainID); err != nil {
		return nil, err
	}

	return id.ToInt(), nil
}

// Balance returns the latest balance of addr in wei.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := c.read(ctx, &balance, methodGetBalance, addr, "latest"); err != nil {
		return nil, err
	}

	return balance.ToInt(), nil
}

// PendingNonce returns the next nonce of addr including pending transactions.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce hexutil.Uint64
	if err := c.read(ctx, &nonce, methodGetTxCount, addr, "pending"); err != nil {
		return 0, err
	}

	return uint64(nonce), nil
}

func (c *Client) FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*FeeHistory, error) {
	var res struct {
		OldestBlock  *hexutil.Big     `json:"oldestBlock"`
		Reward       [][]*hexutil.Big `json:"reward"`
		BaseFee      []*hexutil.Big   `json:"baseFeePerGas"`
		GasUsedRatio []float64        `json:"gasUsedRatio"`
	}
	if err := c.read(ctx, &res, methodFeeHistory, hexutil.Uint64(blocks), "latest", percentiles); err != nil {
		return nil, err
	}

	history := &FeeHistory{
		OldestBlock:  (*big.Int)(res.OldestBlock),
		Reward:       make([][]*big.Int, len(res.Reward)),
		BaseFee:      make([]*big.Int, len(res.BaseFee)),
		GasUsedRatio: res.GasUsedRatio,
	}

	for i, row := range res.Reward {
		history.Reward[i] = make([]*big.Int, len(row))
		for j, v := range row {
			if v == nil {
				return nil, &DecodingError{Method: methodFeeHistory, Err: errors.Errorf("null reward at block %d", i)}
			}
			history.Reward[i][j] = v.ToInt()
		}
	}

	for i, v := range res.BaseFee {
		if v == nil {
			return nil, &DecodingError{Method: methodFeeHistory, Err: errors.Errorf("null base fee at index %d", i)}
		}
		history.BaseFee[i] = v.ToInt()
	}

	return history, nil
}

func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var gas hexutil.Uint64
	if err := c.read(ctx, &gas, methodEstimateGas, toCallArg(msg)); err != nil {
		return 0, err
	}

	return uint64(gas), nil
}

// SendRawTransaction submits an encoded signed transaction and returns the
// hash reported by the node.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.call(ctx, c.opts.WriteTimeout, &hash, false, methodSendRawTransaction, hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}

	return hash, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var res *struct {
		TransactionHash   common.Hash     `json:"transactionHash"`
		BlockHash         common.Hash     `json:"blockHash"`
		BlockNumber       *hexutil.Big    `json:"blockNumber"`
		Status            *hexutil.Uint64 `json:"status"`
		GasUsed           hexutil.Uint64  `json:"gasUsed"`
		EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
		ContractAddress   *common.Address `json:"contractAddress"`
	}
	timeout := c.opts.ReceiptTimeout
	if timeout == 0 {
		timeout = c.opts.ReadTimeout
	}

	if err := c.call(ctx, timeout, &res, true, methodGetReceipt, hash); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, nil //nolint:nilnil // unknown transaction
	}

	if res.BlockNumber == nil || res.Status == nil {
		return nil, &DecodingError{Method: methodGetReceipt, Err: errors.New("receipt lacks block number or status")}
	}

	return &Receipt{
		TxHash:            res.TransactionHash,
		BlockHash:         res.BlockHash,
		BlockNumber:       res.BlockNumber.ToInt().Uint64(),
		Status:            uint64(*res.Status),
		GasUsed:           uint64(res.GasUsed),
		EffectiveGasPrice: (*big.Int)(res.EffectiveGasPrice),
		ContractAddress:   res.ContractAddress,
	}, nil
}

func (c *Client) read(ctx context.Context, out any, method string, args ...any) error {
	return c.call(ctx, c.opts.ReadTimeout, out, false, method, args...)
}

// call performs one request with its own timeout, classifies the failure and
// decodes the result into out. A null result is only accepted when allowNull
// is set.
func (c *Client) call(ctx context.Context, timeout time.Duration, out any, allowNull bool, method string, args ...any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	var raw json.RawMessage
	err := classify(method, c.caller.CallContext(ctx, &raw, method, args...))
	if err == nil {
		err = decode(method, raw, out, allowNull)
	}

	if c.opts.Observer != nil {
		c.opts.Observer.ObserveCall(method, outcome(err), time.Since(start))
	}

	return err
}

func decode(method string, raw json.RawMessage, out any, allowNull bool) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if allowNull {
			return nil
		}

		return &DecodingError{Method: method, Err: errors.New("null result")}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodingError{Method: method, Err: err}
	}

	return nil
}

func toCallArg(msg CallMsg) map[string]any {
	arg := map[string]any{
		"from": msg.From,
	}

	if msg.To != nil {
		arg["to"] = msg.To
	}

	if len(msg.Data) > 0 {
		arg["input"] = hexutil.Bytes(msg.Data)
	}

	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}

	return arg
}
