package security

import (
	"context"
	"sync"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPINLength = 4
	maxPINLength = 12
)

// PINGate authorizes signing with a numeric PIN. The bcrypt hash of the PIN
// lives in the state store; Authenticate trades a correct PIN for a single use
// token that expires after ttl.
type PINGate struct {
	store state.Store
	ttl   time.Duration
	cost  int
	now   func() time.Time

	mu     sync.Mutex
	tokens map[Token]time.Time
}

func NewPINGate(store state.Store, ttl time.Duration, cost int) *PINGate {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &PINGate{
		store:  store,
		ttl:    ttl,
		cost:   cost,
		now:    time.Now,
		tokens: make(map[Token]time.Time),
	}
}

// WithClock replaces the time source.
func (g *PINGate) WithClock(now func() time.Time) *PINGate {
	g.now = now
	return g
}

func (g *PINGate) IsSecuritySetup(ctx context.Context) (bool, error) {
	_, ok, err := g.store.Get(ctx, state.KeyPINHash)
	if err != nil {
		return false, errors.Wrap(err, "failed to read PIN hash")
	}

	return ok, nil
}

// Setup stores a new PIN, replacing any previous one and revoking
// outstanding tokens.
func (g *PINGate) Setup(ctx context.Context, pin string) error {
	if !validPIN(pin) {
		return ErrWeakPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), g.cost)
	if err != nil {
		return errors.Wrap(err, "failed to hash PIN")
	}

	if err := g.store.Set(ctx, state.KeyPINHash, string(hash)); err != nil {
		return errors.Wrap(err, "failed to store PIN hash")
	}

	g.mu.Lock()
	g.tokens = make(map[Token]time.Time)
	g.mu.Unlock()

	util.LogFromContext(ctx).Info().Msg("Security PIN configured")

	return nil
}

// Authenticate checks pin and issues a token.
func (g *PINGate) Authenticate(ctx context.Context, pin string) (Token, error) {
	hash, ok, err := g.store.Get(ctx, state.KeyPINHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to read PIN hash")
	}

	if !ok {
		return "", ErrNotSetUp
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		util.LogFromContext(ctx).Warn().Msg("Rejected wrong PIN")
		return "", ErrWrongPIN
	}

	token := Token(uuid.NewString())
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for t, expiry := range g.tokens {
		if !now.Before(expiry) {
			delete(g.tokens, t)
		}
	}
	g.tokens[token] = now.Add(g.ttl)

	return token, nil
}

// Validate consumes token. A token is accepted at most once.
func (g *PINGate) Validate(_ context.Context, token Token) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.tokens[token]
	if !ok {
		return ErrInvalidToken
	}

	delete(g.tokens, token)

	if !g.now().Before(expiry) {
		return ErrInvalidToken
	}

	return nil
}

func validPIN(pin string) bool {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return false
	}

	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
