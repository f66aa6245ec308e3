package bridge

import "errors"

var (
	ErrTimeout            = errors.New("bridge: timeout waiting for response")
	ErrClosed             = errors.New("bridge: closed")
	ErrMalformedFrame     = errors.New("bridge: malformed frame")
	ErrUnknownMessageType = errors.New("bridge: unknown message type")
)

const unknownHostError = "unknown error from host"

// HostError carries a failure reported by the host verbatim.
type HostError struct {
	Type    MessageType
	Message string
}

func (e *HostError) Error() string { return e.Message }

func newHostError(env Envelope) *HostError {
	msg := env.Error
	if msg == "" {
		msg = unknownHostError
	}
	return &HostError{Type: env.Type, Message: msg}
}
