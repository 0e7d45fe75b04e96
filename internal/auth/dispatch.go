package auth

import (
	"context"
	"fmt"

	"github.com/danmuck/extauthd/internal/protocol"
)

// Dispatcher maps parsed requests onto provider calls.
type Dispatcher struct {
	core    Authenticator
	manager UserManager
	caps    Capabilities
}

// NewDispatcher resolves p's capabilities once.
func NewDispatcher(p Authenticator) (*Dispatcher, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	d := &Dispatcher{core: p, caps: CapabilitiesOf(p)}
	if d.caps.UserManagement {
		d.manager = p.(UserManager)
	}
	return d, nil
}

// Capabilities returns what the wrapped provider advertised at construction.
func (d *Dispatcher) Capabilities() Capabilities {
	return d.caps
}

// Dispatch runs req against the provider.
//
// Unknown commands, and management commands against a core-only provider,
// return false without touching the provider. Provider errors are wrapped
// with the command name and returned unchanged otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (bool, error) {
	ok, err := d.dispatch(ctx, req)
	if err != nil {
		return false, fmt.Errorf("auth: %s: %w", req.Command, err)
	}
	return ok, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req protocol.Request) (bool, error) {
	switch req.Command {
	case protocol.CmdAuth:
		return d.core.Authenticate(ctx, req.User, req.Server, req.Password)
	case protocol.CmdIsUser:
		return d.core.Exists(ctx, req.User, req.Server)
	}

	if !d.caps.UserManagement {
		return false, nil
	}

	switch req.Command {
	case protocol.CmdSetPass:
		return d.manager.SetPassword(ctx, req.User, req.Server, req.Password)
	case protocol.CmdTryRegister:
		return d.manager.Register(ctx, req.User, req.Server, req.Password)
	case protocol.CmdRemoveUser:
		return d.manager.Remove(ctx, req.User, req.Server)
	case protocol.CmdRemoveUser3:
		return d.manager.RemoveSafely(ctx, req.User, req.Server, req.Password)
	default:
		return false, nil
	}
}
