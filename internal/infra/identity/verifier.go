package identity

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller. Subject is stable across sessions
// and is used as the local user id.
type Identity struct {
	Subject string
	Email   string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Chain accepts a token if any verifier accepts it, trying them in order.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (Identity, error) {
	if len(c) == 0 {
		return Identity{}, errors.New("no identity verifier configured")
	}
	var errs []error
	for _, v := range c {
		id, err := v.Verify(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	return Identity{}, errors.Join(errs...)
}
