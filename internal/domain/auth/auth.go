package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for any credential that fails verification.
// The reason is deliberately not distinguished to the caller.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID string
	Email  string
}

// Verifier validates a bearer credential and resolves it to a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}
