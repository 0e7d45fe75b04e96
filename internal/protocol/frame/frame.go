package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen     = 2
	MaxPayloadLen = 0xFFFF
)

var (
	ErrEndOfStream     = errors.New("frame: end of stream")
	ErrInvalidLength   = errors.New("frame: invalid length")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Frame is one length-prefixed wire unit.
//
// Length is the value declared by the header. Payload holds the bytes that
// were actually consumed, which is shorter than Length when a line-bounded
// read stopped at an embedded newline.
type Frame struct {
	Length  uint16
	Payload []byte
}

// Truncated reports whether fewer payload bytes were read than declared.
func (f Frame) Truncated() bool {
	return len(f.Payload) < int(f.Length)
}

// Bytes returns the wire form: big-endian length header followed by payload.
func (f Frame) Bytes() []byte {
	buf := make([]byte, HeaderLen+len(f.Payload))
	binary.BigEndian.PutUint16(buf[0:HeaderLen], f.Length)
	copy(buf[HeaderLen:], f.Payload)
	return buf
}

// Options controls how payload bytes are consumed after the header.
type Options struct {
	// ExactPayload reads exactly Length bytes. When false the read also stops
	// after the first '\n', matching the line-oriented reader the host
	// protocol was originally served with.
	ExactPayload bool
}

func DefaultOptions() Options {
	return Options{}
}

// New builds a frame whose declared length matches the payload.
func New(payload []byte) (Frame, error) {
	if len(payload) > MaxPayloadLen {
		return Frame{}, ErrPayloadTooLarge
	}
	return Frame{Length: uint16(len(payload)), Payload: payload}, nil
}

// ReadFrame blocks until one frame is available on r.
//
// End of input, including input that ends inside a header or payload, is
// reported as ErrEndOfStream. A zero length header is reported as
// ErrInvalidLength and leaves r positioned at the next header.
func ReadFrame(r *bufio.Reader, opts Options) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, streamErr(err)
	}

	length := binary.BigEndian.Uint16(head[:])
	if length == 0 {
		return Frame{}, ErrInvalidLength
	}

	var (
		payload []byte
		err     error
	)
	if opts.ExactPayload {
		payload = make([]byte, length)
		_, err = io.ReadFull(r, payload)
	} else {
		payload, err = readLine(r, int(length))
	}
	if err != nil {
		return Frame{}, streamErr(err)
	}
	return Frame{Length: length, Payload: payload}, nil
}

// WriteFrame writes f to w and flushes w when it buffers.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	if _, err := w.Write(f.Bytes()); err != nil {
		return err
	}
	if fl, ok := w.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}

// readLine reads at most n bytes, stopping after a newline.
func readLine(r *bufio.Reader, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if b == '\n' {
			break
		}
	}
	return buf, nil
}

func streamErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrEndOfStream, err)
	}
	return err
}
