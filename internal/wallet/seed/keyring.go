package seed

import (
	"sync"
)

// Keyring keeps unlocked private keys in memory, keyed by canonical address.
// Secrets are copied in and out so callers can zero their own buffers.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string][]byte)}
}

// Put stores a copy of secret under addr, zeroing any previous entry.
func (k *Keyring) Put(addr string, secret []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if prev, ok := k.keys[addr]; ok {
		zero(prev)
	}

	stored := make([]byte, len(secret))
	copy(stored, secret)
	k.keys[addr] = stored
}

// Get returns a copy of the secret for addr. The caller must zero it.
func (k *Keyring) Get(addr string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	secret, ok := k.keys[addr]
	if !ok {
		return nil, false
	}

	out := make([]byte, len(secret))
	copy(out, secret)

	return out, true
}

func (k *Keyring) Has(addr string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	_, ok := k.keys[addr]

	return ok
}

// Remove zeroes and forgets the secret for addr.
func (k *Keyring) Remove(addr string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if secret, ok := k.keys[addr]; ok {
		zero(secret)
		delete(k.keys, addr)
	}
}

// Clear zeroes and forgets every secret and returns how many there were.
func (k *Keyring) Clear() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := len(k.keys)
	for addr, secret := range k.keys {
		zero(secret)
		delete(k.keys, addr)
	}

	return n
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
