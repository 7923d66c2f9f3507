// Package signer produces signed transactions from an unlocked private key.
package signer

import "github.com/pkg/errors"

var ErrFromMismatch = errors.New("from address does not match private key")
