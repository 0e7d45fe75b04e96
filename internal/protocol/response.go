package protocol

import (
	"encoding/binary"

	"github.com/danmuck/extauthd/internal/protocol/frame"
)

const responseLen = 2

const (
	StatusFailure uint16 = 0
	StatusSuccess uint16 = 1
)

// EncodeResponse maps an outcome to its 2-byte status frame.
func EncodeResponse(ok bool) frame.Frame {
	status := StatusFailure
	if ok {
		status = StatusSuccess
	}
	payload := make([]byte, responseLen)
	binary.BigEndian.PutUint16(payload, status)
	return frame.Frame{Length: responseLen, Payload: payload}
}
