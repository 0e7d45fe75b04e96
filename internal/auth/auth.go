// Package auth defines the capability contract an authentication backend
// implements and the dispatcher that routes host commands onto it.
//
// It intentionally avoids storage concerns; concrete backends live in
// subpackages.
package auth

import (
	"context"
	"errors"
)

var ErrNilProvider = errors.New("auth: provider is nil")

// Authenticator is the core capability every backend must provide.
type Authenticator interface {
	Authenticate(ctx context.Context, user, server, password string) (bool, error)
	Exists(ctx context.Context, user, server string) (bool, error)
}

// UserManager is the optional capability for account changes.
type UserManager interface {
	SetPassword(ctx context.Context, user, server, password string) (bool, error)
	Register(ctx context.Context, user, server, password string) (bool, error)
	Remove(ctx context.Context, user, server string) (bool, error)
	RemoveSafely(ctx context.Context, user, server, password string) (bool, error)
}

// Capabilities describes what a provider advertises.
type Capabilities struct {
	UserManagement bool
}

// CapabilitiesOf inspects p once; callers keep the result.
func CapabilitiesOf(p Authenticator) Capabilities {
	_, ok := p.(UserManager)
	return Capabilities{UserManagement: ok}
}

type coreOnly struct {
	Authenticator
}

// CoreOnly hides any UserManager implementation behind p.
func CoreOnly(p Authenticator) Authenticator {
	if p == nil {
		return nil
	}
	return coreOnly{Authenticator: p}
}

// Funcs adapts plain functions into an Authenticator.
// It is intended for tests and small embedded backends.
type Funcs struct {
	AuthenticateFunc func(ctx context.Context, user, server, password string) (bool, error)
	ExistsFunc       func(ctx context.Context, user, server string) (bool, error)
}

func (f Funcs) Authenticate(ctx context.Context, user, server, password string) (bool, error) {
	if f.AuthenticateFunc == nil {
		return false, nil
	}
	return f.AuthenticateFunc(ctx, user, server, password)
}

func (f Funcs) Exists(ctx context.Context, user, server string) (bool, error) {
	if f.ExistsFunc == nil {
		return false, nil
	}
	return f.ExistsFunc(ctx, user, server)
}
