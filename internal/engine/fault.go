package engine

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/protocol"
	"github.com/danmuck/extauthd/internal/protocol/frame"
)

var (
	ErrProviderFault = errors.New("engine: provider fault")
	ErrTransport     = errors.New("engine: transport failure")
	ErrWrite         = errors.New("engine: response write failed")
)

// Phase names the step of a cycle an error came from.
type Phase string

const (
	PhaseRead     Phase = "read"
	PhaseParse    Phase = "parse"
	PhaseDispatch Phase = "dispatch"
	PhaseRespond  Phase = "respond"
)

// Fault is a panic recovered inside a phase.
type Fault struct {
	Phase Phase
	Value any
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("engine: panic during %s: %v", f.Phase, f.Value)
}

// guard runs fn and converts a panic into a *Fault.
func guard[T any](phase Phase, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Phase: phase, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// classification of an error for logs and metrics.
type classification struct {
	severity logging.Severity
	kind     string
	fatal    bool
}

func classify(err error) classification {
	var fault *Fault
	switch {
	case errors.Is(err, frame.ErrEndOfStream):
		return classification{severity: logging.Info, kind: "end_of_stream", fatal: true}
	case errors.Is(err, ErrTransport):
		return classification{severity: logging.Critical, kind: "transport", fatal: true}
	case errors.Is(err, frame.ErrInvalidLength):
		return classification{severity: logging.Warning, kind: "invalid_length"}
	case errors.Is(err, protocol.ErrTooFewFields):
		return classification{severity: logging.Warning, kind: "too_few_fields"}
	case errors.As(err, &fault):
		return classification{severity: logging.Critical, kind: "panic_" + string(fault.Phase)}
	case errors.Is(err, ErrProviderFault):
		return classification{severity: logging.Error, kind: "provider"}
	case errors.Is(err, ErrWrite):
		return classification{severity: logging.Error, kind: "write"}
	default:
		return classification{severity: logging.Error, kind: "unknown"}
	}
}
