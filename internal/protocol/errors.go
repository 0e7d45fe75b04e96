package protocol

import "errors"

var (
	ErrTooFewFields = errors.New("protocol: message is too short")
)
