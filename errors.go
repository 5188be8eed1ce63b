package eio

import (
	"errors"

	"github.com/karagenc/eio-server/parser"
)

var (
	ErrSocketClosed  = errors.New("eio: socket is closed")
	ErrNotUpgradable = errors.New("eio: only a polling socket can be upgraded")
	ErrPingTimeout   = errors.New("eio: pingTimeout exceeded")
)

// ProtocolViolation is returned for a packet the server doesn't
// accept at this point of a session. The connection stays usable.
type ProtocolViolation struct {
	PacketType parser.PacketType
	Reason     string
}

func (e *ProtocolViolation) Error() string {
	return "eio: unexpected " + e.PacketType.String() + " packet: " + e.Reason
}

// TransportError wraps a failure of the underlying channel.
type TransportError struct {
	Op        string
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return "eio: " + e.Transport + " " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// This is a wrapper for the errors internal to engine.io.
//
// If you see this error, this means that the problem is
// neither a network error, nor an error caused by you, but
// the source of the error is engine.io.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "eio: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error { return e.err }

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}
