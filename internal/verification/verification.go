// Package verification decides whether a caller-supplied proof-of-presence
// token (the scanned QR payload) is acceptable.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

var (
	ErrMissing  = errors.New("verification token missing")
	ErrMismatch = errors.New("verification token rejected")
)

// Verifier checks a verification token.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// PresenceOnly accepts any non-empty token.
type PresenceOnly struct{}

func (PresenceOnly) Verify(_ context.Context, token string) error {
	if token == "" {
		return ErrMissing
	}
	return nil
}

// SharedSecret accepts only tokens equal to Secret.
type SharedSecret struct {
	Secret string
}

func (v SharedSecret) Verify(_ context.Context, token string) error {
	if token == "" {
		return ErrMissing
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.Secret)) != 1 {
		return ErrMismatch
	}
	return nil
}

// New returns the verifier for mode ("presence" or "secret").
func New(mode, secret string) (Verifier, error) {
	switch mode {
	case "", "presence":
		return PresenceOnly{}, nil
	case "secret":
		if secret == "" {
			return nil, errors.New("verification: secret mode requires QR_SECRET")
		}
		return SharedSecret{Secret: secret}, nil
	default:
		return nil, fmt.Errorf("verification: unknown mode %q", mode)
	}
}
