package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/extauthd/internal/config"
	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameOf(payload string) []byte {
	buf := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

func parse(t *testing.T, args ...string) *RootCmd {
	t.Helper()
	root := &RootCmd{}
	parser, err := newParser(root)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return root
}

func TestParseDefaultsToRun(t *testing.T) {
	testlog.Start(t)
	root := &RootCmd{}
	parser, err := newParser(root)
	require.NoError(t, err)
	kctx, err := parser.Parse([]string{"--debug"})
	require.NoError(t, err)
	assert.Equal(t, "run", kctx.Command())
	assert.True(t, root.Debug)
}

func TestResolveConfigPrecedence(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
path = "/tmp/file.log"

[backend]
kind = "sqlite"
sqlite_path = "/tmp/file.db"
`), 0o600))
	t.Setenv(logging.EnvLogPath, "/tmp/env.log")
	t.Setenv(logging.EnvLogDebug, "")

	root := parse(t, "--config", path, "--sqlite-path", "/tmp/flag.db", "--read-only")
	cfg, err := resolveConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.log", cfg.Log.Path)
	assert.Equal(t, config.BackendSQLite, cfg.Backend.Kind)
	assert.Equal(t, "/tmp/flag.db", cfg.Backend.SQLitePath)
	assert.True(t, cfg.Backend.ReadOnly)

	root = parse(t, "--config", path, "--log", "/tmp/flag.log")
	cfg, err = resolveConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.log", cfg.Log.Path)
}

func TestResolveConfigExplicitMissingFile(t *testing.T) {
	testlog.Start(t)
	root := parse(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	_, err := resolveConfig(root)
	require.Error(t, err)
}

func TestResolveConfigRejectsBadBackend(t *testing.T) {
	testlog.Start(t)
	root := parse(t, "--config", writeEmpty(t), "--backend", "redis")
	_, err := resolveConfig(root)
	require.Error(t, err)
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func TestServeAnswersUntilEndOfInput(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	users := filepath.Join(dir, "users.toml")
	require.NoError(t, os.WriteFile(users, []byte(`
[[users]]
user = "bob"
server = "example.org"
password = "pw"
`), 0o600))
	logPath := filepath.Join(dir, "logs", "extauth.log")

	cfg := config.Default()
	cfg.Log.Path = logPath
	cfg.Backend.UsersFile = users
	cfg.Backend.ReadOnly = true

	in := bytes.NewReader(bytes.Join([][]byte{
		frameOf("auth:bob:example.org:pw"),
		frameOf("removeuser:bob:example.org"),
	}, nil))
	var out bytes.Buffer
	require.NoError(t, serve(context.Background(), cfg, in, &out))
	assert.Equal(t, []byte{0, 2, 0, 1, 0, 2, 0, 0}, out.Bytes())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(data)
	for _, want := range []string{
		"INFO: Starting auth service...",
		"INFO: Backend memory ready: authentication only",
		"INFO: Entering event loop...",
		"INFO: Pipe broken:",
		"INFO: Exiting...",
	} {
		assert.True(t, strings.Contains(log, want), "missing %q in log:\n%s", want, log)
	}
}

func TestServeReportsBackendFailure(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Backend.UsersFile = filepath.Join(t.TempDir(), "missing.toml")
	err := serve(context.Background(), cfg, bytes.NewReader(nil), &bytes.Buffer{})
	require.Error(t, err)
}

func TestServeWaitsForLoopOnCancel(t *testing.T) {
	testlog.Start(t)
	logPath := filepath.Join(t.TempDir(), "extauth.log")
	cfg := config.Default()
	cfg.Log.Path = logPath

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, pr, &bytes.Buffer{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	// input ends while shutdown is draining
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(drainTimeout + time.Second):
		t.Fatalf("serve did not return")
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(data)
	broken := strings.Index(log, "Pipe broken:")
	exiting := strings.Index(log, "Exiting...")
	require.GreaterOrEqual(t, broken, 0, "loop must finish before teardown:\n%s", log)
	require.Greater(t, exiting, broken, "Exiting... must follow the loop's last entry:\n%s", log)
}

func TestServeAbandonsBlockedRead(t *testing.T) {
	testlog.Start(t)
	old := drainTimeout
	drainTimeout = 50 * time.Millisecond
	t.Cleanup(func() { drainTimeout = old })

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, config.Default(), pr, &bytes.Buffer{}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return while input was blocked")
	}
}
