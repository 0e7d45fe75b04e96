package engine

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/observability"
	"github.com/danmuck/extauthd/internal/protocol"
	"github.com/danmuck/extauthd/internal/protocol/frame"
)

var (
	ErrNoInput  = errors.New("engine: input stream is nil")
	ErrNoOutput = errors.New("engine: output stream is nil")
)

// State is the loop lifecycle.
type State int

const (
	StateRunning State = iota
	StateTerminating
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Config holds everything the engine owns for the process lifetime.
type Config struct {
	In       io.Reader
	Out      io.Writer
	Provider auth.Authenticator
	Log      *logging.Logger // nil disables logging
	Frame    frame.Options
}

// Engine is the request/response loop.
type Engine struct {
	in         *bufio.Reader
	out        *bufio.Writer
	dispatcher *auth.Dispatcher
	log        *logging.Logger
	opts       frame.Options
	state      State
}

func New(cfg Config) (*Engine, error) {
	if cfg.In == nil {
		return nil, ErrNoInput
	}
	if cfg.Out == nil {
		return nil, ErrNoOutput
	}
	d, err := auth.NewDispatcher(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return &Engine{
		in:         bufio.NewReader(cfg.In),
		out:        bufio.NewWriter(cfg.Out),
		dispatcher: d,
		log:        cfg.Log,
		opts:       cfg.Frame,
		state:      StateRunning,
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Capabilities returns what the provider advertised.
func (e *Engine) Capabilities() auth.Capabilities {
	return e.dispatcher.Capabilities()
}

// Run processes frames until the input ends, ctx is cancelled, or the
// transport fails. End of input returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Log("Entering event loop...", logging.Info)
	defer func() {
		_ = e.out.Flush()
		e.state = StateExited
	}()

	for {
		if err := ctx.Err(); err != nil {
			e.state = StateTerminating
			e.log.Logf(logging.Info, "Event loop cancelled: %v", err)
			return err
		}
		err := e.Step(ctx)
		if err == nil {
			continue
		}
		c := e.report(err)
		if !c.fatal {
			continue
		}
		e.state = StateTerminating
		if errors.Is(err, frame.ErrEndOfStream) {
			return nil
		}
		return err
	}
}

// Step runs one read, parse, dispatch, respond cycle. A nil return means a
// response was written.
func (e *Engine) Step(ctx context.Context) error {
	f, err := guard(PhaseRead, func() (frame.Frame, error) {
		return frame.ReadFrame(e.in, e.opts)
	})
	if err != nil {
		return readErr(err)
	}
	if f.Truncated() {
		e.log.Logf(logging.Warning, "Payload shorter than declared length: declared=%d read=%d", f.Length, len(f.Payload))
	}

	req, err := guard(PhaseParse, func() (protocol.Request, error) {
		return protocol.ParseRequest(f.Payload)
	})
	if err != nil {
		return err
	}
	e.log.Log("Received message: "+req.String(), logging.Debug)

	start := time.Now()
	ok, err := guard(PhaseDispatch, func() (bool, error) {
		return e.dispatcher.Dispatch(ctx, req)
	})
	if err != nil {
		var fault *Fault
		if errors.As(err, &fault) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrProviderFault, err)
	}
	observability.RecordRequest(string(req.Command), ok, time.Since(start))

	resp := protocol.EncodeResponse(ok)
	e.log.Log("Sending response: "+hex.EncodeToString(resp.Bytes()), logging.Debug)
	_, err = guard(PhaseRespond, func() (struct{}, error) {
		return struct{}{}, frame.WriteFrame(e.out, resp)
	})
	if err != nil {
		var fault *Fault
		if errors.As(err, &fault) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// readErr keeps recoverable frame errors and panics as they are and marks
// anything else from the input stream as a transport failure.
func readErr(err error) error {
	var fault *Fault
	switch {
	case errors.Is(err, frame.ErrEndOfStream), errors.Is(err, frame.ErrInvalidLength), errors.As(err, &fault):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// report is the single place errors become log entries and metrics.
func (e *Engine) report(err error) classification {
	c := classify(err)
	msg := err.Error()
	if errors.Is(err, frame.ErrEndOfStream) {
		msg = "Pipe broken: " + msg
	} else {
		observability.RecordFault(c.kind)
	}
	e.log.Log(msg, c.severity)

	var fault *Fault
	if errors.As(err, &fault) {
		e.log.Log(string(fault.Stack), logging.Debug)
	}
	return c
}
