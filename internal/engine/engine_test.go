package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/danmuck/extauthd/internal/auth/memory"
	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/protocol/frame"
	"github.com/danmuck/extauthd/internal/testutil/testlog"
)

var (
	respTrue  = []byte{0x00, 0x02, 0x00, 0x01}
	respFalse = []byte{0x00, 0x02, 0x00, 0x00}
)

func msg(payload string) []byte {
	buf := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

func stream(parts ...[]byte) io.Reader {
	return bytes.NewReader(bytes.Join(parts, nil))
}

type harness struct {
	eng *Engine
	out *bytes.Buffer
	log *bytes.Buffer
}

func newHarness(t *testing.T, in io.Reader, p auth.Authenticator, debug bool) harness {
	t.Helper()
	testlog.Start(t)
	out := &bytes.Buffer{}
	logBuf := &bytes.Buffer{}
	eng, err := New(Config{
		In:       in,
		Out:      out,
		Provider: p,
		Log:      logging.New(logBuf, logging.Config{Debug: debug}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return harness{eng: eng, out: out, log: logBuf}
}

func (h harness) run(t *testing.T) {
	t.Helper()
	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.eng.State() != StateExited {
		t.Fatalf("expected exited state, got %s", h.eng.State())
	}
}

type calls struct {
	names []string
}

// coreOnly records which methods were hit; it never advertises management.
func coreOnly(c *calls, result bool) auth.Authenticator {
	return auth.Funcs{
		AuthenticateFunc: func(_ context.Context, user, server, password string) (bool, error) {
			c.names = append(c.names, "authenticate:"+user+":"+server+":"+password)
			return result, nil
		},
		ExistsFunc: func(_ context.Context, user, server string) (bool, error) {
			c.names = append(c.names, "exists:"+user+":"+server)
			return result, nil
		},
	}
}

func TestAuthExampleFrame(t *testing.T) {
	c := &calls{}
	in := []byte{0x00, 0x0A, 'a', 'u', 't', 'h', ':', 'b', 'o', 'b', ':', 'x'}
	h := newHarness(t, bytes.NewReader(in), coreOnly(c, true), false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respTrue) {
		t.Fatalf("unexpected output % x", h.out.Bytes())
	}
	if len(c.names) != 1 || c.names[0] != "authenticate:bob:x:" {
		t.Fatalf("unexpected provider calls %v", c.names)
	}
}

func TestWellFormedRequestsGetExactlyOneResponse(t *testing.T) {
	store := memory.New()
	if ok, _ := store.Register(context.Background(), "bob", "example.org", "pw"); !ok {
		t.Fatalf("seed register failed")
	}
	in := stream(
		msg("auth:bob:example.org:pw"),
		msg("auth:bob:example.org:bad"),
		msg("isuser:bob:example.org"),
		msg("isuser:eve:example.org"),
		msg("tryregister:eve:example.org:pw2"),
		msg("setpass:eve:example.org:pw3"),
		msg("removeuser3:eve:example.org:pw2"),
		msg("removeuser3:eve:example.org:pw3"),
		msg("removeuser:bob:example.org"),
		msg("unknown:bob:example.org"),
	)
	h := newHarness(t, in, store, false)
	h.run(t)

	want := [][]byte{respTrue, respFalse, respTrue, respFalse, respTrue, respTrue, respFalse, respTrue, respTrue, respFalse}
	if !bytes.Equal(h.out.Bytes(), bytes.Join(want, nil)) {
		t.Fatalf("unexpected output % x", h.out.Bytes())
	}
}

func TestZeroLengthFrameProducesNoResponse(t *testing.T) {
	c := &calls{}
	in := stream([]byte{0x00, 0x00}, msg("isuser:bob:x"))
	h := newHarness(t, in, coreOnly(c, true), false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respTrue) {
		t.Fatalf("expected single response for the valid frame, got % x", h.out.Bytes())
	}
	if !strings.Contains(h.log.String(), "WARNING: frame: invalid length") {
		t.Fatalf("missing invalid length warning in log: %q", h.log.String())
	}
}

func TestTooFewFieldsProducesNoResponse(t *testing.T) {
	c := &calls{}
	in := stream(msg("ab:cd"), msg("isuser:bob:x"))
	h := newHarness(t, in, coreOnly(c, false), false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respFalse) {
		t.Fatalf("expected only the second frame answered, got % x", h.out.Bytes())
	}
	if !strings.Contains(h.log.String(), "WARNING: protocol: message is too short: ab:cd") {
		t.Fatalf("missing too-short warning in log: %q", h.log.String())
	}
}

func TestManagementCommandAgainstCoreOnlyProvider(t *testing.T) {
	c := &calls{}
	in := stream(msg("removeuser:bob:x"))
	h := newHarness(t, in, coreOnly(c, true), false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respFalse) {
		t.Fatalf("unexpected output % x", h.out.Bytes())
	}
	if len(c.names) != 0 {
		t.Fatalf("provider must not be invoked, got %v", c.names)
	}
	if h.eng.Capabilities().UserManagement {
		t.Fatalf("core-only provider must not advertise user management")
	}
}

func TestProviderErrorIsContained(t *testing.T) {
	p := auth.Funcs{
		ExistsFunc: func(_ context.Context, user, _ string) (bool, error) {
			if user == "bad" {
				return false, errors.New("store unavailable")
			}
			return true, nil
		},
	}
	in := stream(msg("isuser:bad:x"), msg("isuser:good:x"))
	h := newHarness(t, in, p, false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respTrue) {
		t.Fatalf("faulting request must not be answered, got % x", h.out.Bytes())
	}
	if !strings.Contains(h.log.String(), "ERROR: engine: provider fault: auth: isuser: store unavailable") {
		t.Fatalf("missing provider fault in log: %q", h.log.String())
	}
}

func TestProviderPanicIsContained(t *testing.T) {
	p := auth.Funcs{
		AuthenticateFunc: func(context.Context, string, string, string) (bool, error) {
			var m map[string]int
			m["boom"]++
			return true, nil
		},
		ExistsFunc: func(context.Context, string, string) (bool, error) { return true, nil },
	}
	in := stream(msg("auth:bob:x:pw"), msg("isuser:bob:x"))
	h := newHarness(t, in, p, false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respTrue) {
		t.Fatalf("panicking request must not be answered, got % x", h.out.Bytes())
	}
	if !strings.Contains(h.log.String(), "CRITICAL: engine: panic during dispatch") {
		t.Fatalf("missing panic entry in log: %q", h.log.String())
	}
}

func TestEndOfStreamLogsAndStopsWriting(t *testing.T) {
	h := newHarness(t, stream(), coreOnly(&calls{}, true), false)
	h.run(t)

	if h.out.Len() != 0 {
		t.Fatalf("no output expected, got % x", h.out.Bytes())
	}
	log := h.log.String()
	if !strings.Contains(log, "INFO: Entering event loop...") {
		t.Fatalf("missing loop entry: %q", log)
	}
	if !strings.Contains(log, "INFO: Pipe broken: frame: end of stream") {
		t.Fatalf("missing exit message: %q", log)
	}
}

func TestDebugLogsRequestAndResponse(t *testing.T) {
	h := newHarness(t, stream(msg("auth:bob:x:hunter2")), coreOnly(&calls{}, true), true)
	h.run(t)

	log := h.log.String()
	if !strings.Contains(log, `DEBUG: Received message: {"command":"auth","user":"bob","server":"x","password":"***"}`) {
		t.Fatalf("missing request debug entry: %q", log)
	}
	if !strings.Contains(log, "DEBUG: Sending response: 00020001") {
		t.Fatalf("missing response debug entry: %q", log)
	}
	if strings.Contains(log, "hunter2") {
		t.Fatalf("password leaked into log")
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	h := newHarness(t, stream(msg("isuser:bob:x")), coreOnly(&calls{}, true), false)
	h.run(t)
	if strings.Contains(h.log.String(), "DEBUG") {
		t.Fatalf("debug entries must be suppressed: %q", h.log.String())
	}
}

func TestEmbeddedNewlineIsFlagged(t *testing.T) {
	c := &calls{}
	// declared length covers "isuser:bob:x\n" plus "zz"; the line-bounded
	// read stops after the newline and leaves "zz" in the stream, which is
	// then read as a header (0x7a7a) that runs past end of input.
	payload := "isuser:bob:x\nzz"
	h := newHarness(t, stream(msg(payload)), coreOnly(c, true), false)
	h.run(t)

	if !bytes.Equal(h.out.Bytes(), respTrue) {
		t.Fatalf("unexpected output % x", h.out.Bytes())
	}
	if len(c.names) != 1 || c.names[0] != "exists:bob:x\n" {
		t.Fatalf("unexpected calls %q", c.names)
	}
	if !strings.Contains(h.log.String(), "WARNING: Payload shorter than declared length: declared=15 read=13") {
		t.Fatalf("missing short payload warning: %q", h.log.String())
	}
}

func TestExactPayloadOption(t *testing.T) {
	c := &calls{}
	testlog.Start(t)
	out := &bytes.Buffer{}
	eng, err := New(Config{
		In:       stream(msg("isuser:bob:x\nzz")),
		Out:      out,
		Provider: coreOnly(c, true),
		Frame:    frame.Options{ExactPayload: true},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(c.names) != 1 || c.names[0] != "exists:bob:x\nzz" {
		t.Fatalf("unexpected calls %q", c.names)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteFailureIsContained(t *testing.T) {
	testlog.Start(t)
	logBuf := &bytes.Buffer{}
	eng, err := New(Config{
		In:       stream(msg("isuser:bob:x"), msg("isuser:bob:x")),
		Out:      failingWriter{},
		Provider: coreOnly(&calls{}, true),
		Log:      logging.New(logBuf, logging.Config{}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(logBuf.String(), "ERROR: engine: response write failed"); got < 1 {
		t.Fatalf("expected write failures in log: %q", logBuf.String())
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("input/output error") }

func TestTransportFailureStopsLoop(t *testing.T) {
	h := newHarness(t, brokenReader{}, coreOnly(&calls{}, true), false)
	err := h.eng.Run(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !strings.Contains(h.log.String(), "CRITICAL: engine: transport failure") {
		t.Fatalf("missing transport entry: %q", h.log.String())
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	h := newHarness(t, stream(msg("isuser:bob:x")), coreOnly(&calls{}, true), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.out.Len() != 0 {
		t.Fatalf("no output expected after cancel")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	p := coreOnly(&calls{}, true)
	if _, err := New(Config{Out: io.Discard, Provider: p}); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if _, err := New(Config{In: stream(), Provider: p}); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
	if _, err := New(Config{In: stream(), Out: io.Discard}); !errors.Is(err, auth.ErrNilProvider) {
		t.Fatalf("expected ErrNilProvider, got %v", err)
	}
}

func TestLongPasswordManagementIsAnswered(t *testing.T) {
	store := memory.New()
	if ok, _ := store.Register(context.Background(), "bob", "x", "pw"); !ok {
		t.Fatalf("seed register failed")
	}
	long := strings.Repeat("p", 80)
	in := stream(
		msg("tryregister:alice:x:"+long),
		msg("auth:bob:x:"+long),
		msg("setpass:bob:x:"+long),
	)
	h := newHarness(t, in, store, false)
	h.run(t)

	want := bytes.Join([][]byte{respFalse, respFalse, respFalse}, nil)
	if !bytes.Equal(h.out.Bytes(), want) {
		t.Fatalf("every request must be answered, got % x", h.out.Bytes())
	}
	if strings.Contains(h.log.String(), "provider fault") {
		t.Fatalf("long passwords must not be provider faults: %q", h.log.String())
	}
}
