// Package authtest holds the behaviour suite every credential backend must
// pass.
package authtest

import (
	"context"
	"strings"
	"testing"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/stretchr/testify/require"
)

// Backend is a provider advertising both capabilities.
type Backend interface {
	auth.Authenticator
	auth.UserManager
}

// Run exercises b, which must start empty for server "example.org".
func Run(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	const server = "example.org"

	require.True(t, auth.CapabilitiesOf(b).UserManagement)

	ok, err := b.Exists(ctx, "alice", server)
	require.NoError(t, err)
	require.False(t, ok, "empty backend must not know alice")

	ok, err = b.Authenticate(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.False(t, ok, "unknown user must not authenticate")

	ok, err = b.SetPassword(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.False(t, ok, "setpass on unknown user")

	ok, err = b.Register(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.True(t, ok, "register new user")

	ok, err = b.Register(ctx, "alice", server, "other")
	require.NoError(t, err)
	require.False(t, ok, "register existing user")

	ok, err = b.Exists(ctx, "alice", server)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Exists(ctx, "alice", "elsewhere.org")
	require.NoError(t, err)
	require.False(t, ok, "users are scoped by server")

	ok, err = b.Authenticate(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Authenticate(ctx, "alice", server, "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = b.SetPassword(ctx, "alice", server, "pw2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Authenticate(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.False(t, ok, "old password after setpass")

	ok, err = b.Authenticate(ctx, "alice", server, "pw2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.RemoveSafely(ctx, "alice", server, "pw1")
	require.NoError(t, err)
	require.False(t, ok, "removeuser3 with wrong password")

	ok, err = b.Exists(ctx, "alice", server)
	require.NoError(t, err)
	require.True(t, ok, "failed removeuser3 must keep the user")

	ok, err = b.RemoveSafely(ctx, "alice", server, "pw2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Exists(ctx, "alice", server)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = b.Register(ctx, "bob", server, "pw")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Remove(ctx, "bob", server)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Remove(ctx, "bob", server)
	require.NoError(t, err)
	require.False(t, ok, "remove missing user")

	ok, err = b.RemoveSafely(ctx, "bob", server, "pw")
	require.NoError(t, err)
	require.False(t, ok, "removeuser3 missing user")

	runDistinctAccounts(t, b)
	runLongPasswords(t, b, server)
}

// runDistinctAccounts checks that accounts whose fields concatenate to the
// same text stay separate.
func runDistinctAccounts(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	ok, err := b.Register(ctx, "a@b", "c", "pw")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Exists(ctx, "a", "b@c")
	require.NoError(t, err)
	require.False(t, ok, "a@b on c must not be a on b@c")

	ok, err = b.Authenticate(ctx, "a", "b@c", "pw")
	require.NoError(t, err)
	require.False(t, ok, "a on b@c must not authenticate with a@b's password")

	ok, err = b.Register(ctx, "a", "b@c", "other")
	require.NoError(t, err)
	require.True(t, ok, "a on b@c is a distinct account")

	ok, err = b.Authenticate(ctx, "a@b", "c", "pw")
	require.NoError(t, err)
	require.True(t, ok, "registering a on b@c must not replace a@b on c")

	for _, acct := range [][2]string{{"a@b", "c"}, {"a", "b@c"}} {
		ok, err = b.Remove(ctx, acct[0], acct[1])
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// runLongPasswords checks that passwords bcrypt cannot hash are refused
// with false rather than an error.
func runLongPasswords(t *testing.T, b Backend, server string) {
	t.Helper()
	ctx := context.Background()
	long := strings.Repeat("p", 80)

	ok, err := b.Register(ctx, "carol", server, long)
	require.NoError(t, err)
	require.False(t, ok, "register with an unhashable password")

	ok, err = b.Exists(ctx, "carol", server)
	require.NoError(t, err)
	require.False(t, ok, "refused register must not create the user")

	ok, err = b.Register(ctx, "carol", server, "pw")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.SetPassword(ctx, "carol", server, long)
	require.NoError(t, err)
	require.False(t, ok, "setpass with an unhashable password")

	ok, err = b.Authenticate(ctx, "carol", server, "pw")
	require.NoError(t, err)
	require.True(t, ok, "refused setpass must keep the old password")

	ok, err = b.Authenticate(ctx, "carol", server, long)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = b.Remove(ctx, "carol", server)
	require.NoError(t, err)
	require.True(t, ok)
}
