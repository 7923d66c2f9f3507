// Package state persists the small amount of non-secret wallet state: the
// selected address, backup flags and the PIN hash. Keys never pass through it.
package state

import (
	"context"
)

const (
	KeySelectedAddress = "wallet.selected_address"
	KeyPINHash         = "security.pin_hash"

	backupKeyPrefix = "wallet.backed_up."
)

// Store is a string key/value store.
type Store interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// BackupKey is the key of the backup flag of a canonical address.
func BackupKey(addr string) string {
	return backupKeyPrefix + addr
}
