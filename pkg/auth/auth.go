// Package auth validates the credentials devices present at login.
package auth

import (
	"context"
	"errors"
)

// ErrDenied is returned when credentials are rejected.
var ErrDenied = errors.New("authentication denied")

// Identity is the backend user a device authenticated as.
type Identity struct {
	UserID    int32
	Name      string
	ContactID int32
}

// Checker validates a username and password pair.
type Checker interface {
	Check(ctx context.Context, username, password string) (*Identity, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, username, password string) (*Identity, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, username, password string) (*Identity, error) {
	return f(ctx, username, password)
}

// Chain tries each checker in order and returns the first identity. A denial
// falls through to the next checker; any other error aborts the chain.
type Chain []Checker

// Check implements Checker.
func (c Chain) Check(ctx context.Context, username, password string) (*Identity, error) {
	for _, checker := range c {
		if checker == nil {
			continue
		}
		id, err := checker.Check(ctx, username, password)
		if err == nil {
			return id, nil
		}
		if err != ErrDenied {
			return nil, err
		}
	}
	return nil, ErrDenied
}
