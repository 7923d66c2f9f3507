// Package security decides whether a caller may use a signing key.
package security

import (
	"context"

	"github.com/pkg/errors"
)

// Token is an opaque authorization handed to the vault with each signing
// request.
type Token string

var (
	ErrInvalidToken = errors.New("invalid or expired authorization token")
	ErrNotSetUp     = errors.New("security has not been set up")
	ErrWrongPIN     = errors.New("wrong PIN")
	ErrWeakPIN      = errors.New("PIN must be 4 to 12 digits")
)

// Gate is consulted before every signature.
type Gate interface {
	// IsSecuritySetup reports whether the user configured a credential.
	IsSecuritySetup(ctx context.Context) (bool, error)
	// Validate accepts or rejects token. It returns ErrInvalidToken on rejection.
	Validate(ctx context.Context, token Token) error
}
