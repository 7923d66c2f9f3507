package wallet

import (
	"context"
	"math/big"
	"time"

	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/security"
	"github.com/chapool/wallet-core/internal/wallet/state"
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/chapool/wallet-core/internal/wallet/txbuilder"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrNoSelection    = errors.New("no wallet selected")
)

// Wallet is the public view of a stored key. Address is the lowercase 0x-hex
// form and never changes after creation.
type Wallet struct {
	ID         string
	Address    string
	CreatedAt  time.Time
	IsBackedUp bool
}

// WithBackup returns a copy of w marked as backed up.
func (w Wallet) WithBackup() Wallet {
	w.IsBackedUp = true
	return w
}

// SendState is a step of the send state machine.
type SendState int

const (
	StateBuilding SendState = iota + 1
	StateFeeEstimating
	StateSigning
	StateBroadcasting
	StateConfirming
	StateConfirmed
	StateFailed
	// StatePending ends a send whose receipt did not arrive in time. The
	// transaction was broadcast and may still be mined.
	StatePending
)

func (s SendState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateFeeEstimating:
		return "fee_estimating"
	case StateSigning:
		return "signing"
	case StateBroadcasting:
		return "broadcasting"
	case StateConfirming:
		return "confirming"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Terminal reports whether a send ends in s.
func (s SendState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StatePending
}

// SendError aborts a send. State is where it stopped; Err carries the typed
// cause from the failing component.
type SendError struct {
	State SendState
	Err   error
}

func (e *SendError) Error() string {
	return "send failed while " + e.State.String() + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// BroadcastError reports a signed transaction the node refused or never
// acknowledged.
type BroadcastError struct {
	Hash common.Hash
	Err  error
}

func (e *BroadcastError) Error() string {
	return "broadcast of " + e.Hash.Hex() + " failed: " + e.Err.Error()
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// SendRequest describes one transfer, contract call or deployment.
type SendRequest struct {
	From  string
	To    string
	Value *big.Int
	Data  []byte
	Tier  fee.Tier
	Fees  *txbuilder.Override
	// Token authorizes the signature, see security.Gate.
	Token security.Token
	// OnState, if set, is called on every transition of this send.
	OnState func(SendState)
}

// SendResult is what a send produced. Transaction and Record are nil when the
// send failed before broadcast.
type SendResult struct {
	State       SendState
	Transaction *transaction.Signed
	Estimate    *fee.Estimate
	Record      *transaction.Record
}

// KeyVault is the key custody the service relies on.
type KeyVault interface {
	Create(ctx context.Context) (*vault.Key, error)
	Restore(ctx context.Context, cred vault.Credential) (*vault.Key, bool, error)
	Sign(ctx context.Context, addr common.Address, token security.Token, tx *transaction.Unsigned) (*transaction.Signed, error)
	Delete(ctx context.Context, addr common.Address) error
	Exists(ctx context.Context, addr common.Address) (bool, error)
	List(ctx context.Context) ([]*vault.Key, error)
}

// Recorder receives the final state of every send.
type Recorder interface {
	ObserveSend(state string)
}

// Dependencies are the collaborators of a Service. Recorder is optional.
type Dependencies struct {
	Vault       KeyVault
	Reader      rpc.Reader
	Broadcaster rpc.Broadcaster
	Gate        security.Gate
	Store       state.Store
	Recorder    Recorder
}

type Config struct {
	ChainID *big.Int
	Fees    fee.Config
	// MaxDataBytes bounds calldata, zero means txbuilder.DefaultMaxDataBytes.
	MaxDataBytes int
	// Legacy sends gasPrice transactions.
	Legacy bool
	// ConfirmTimeout bounds receipt polling; the send ends Pending after it.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func DefaultConfig(chainID *big.Int) Config {
	return Config{
		ChainID:        chainID,
		Fees:           fee.DefaultConfig(),
		MaxDataBytes:   txbuilder.DefaultMaxDataBytes,
		ConfirmTimeout: 2 * time.Minute, //nolint:mnd
		PollInterval:   2 * time.Second, //nolint:mnd
	}
}
