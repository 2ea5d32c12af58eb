package network

import (
	"errors"
	"fmt"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// Lifecycle errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrHandshakeFailed    = errors.New("handshake failed")
	ErrVersionMismatch    = errors.New("protocol version mismatch")
	ErrTokenMismatch      = errors.New("pong token does not match ping token")
	ErrServerClosed       = errors.New("server closed")
	ErrServerStarted      = errors.New("server already started")
	ErrTooManyConnections = errors.New("connection limit reached")
)

// ReadError wraps a failure to receive a packet inside the serve loop.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read failed: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// ProcessingError wraps a failure returned by Handler.OnPacket.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string { return "packet processing failed: " + e.Err.Error() }
func (e *ProcessingError) Unwrap() error { return e.Err }

// DisconnectError is the terminal signal of a connection's lifecycle.
// It is the only error a session hands to Handler.OnClose.
type DisconnectError struct {
	Reason string
	Err    error
}

// Disconnect builds a DisconnectError with a formatted reason.
func Disconnect(format string, args ...any) *DisconnectError {
	return &DisconnectError{Reason: fmt.Sprintf(format, args...)}
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return "disconnected: " + e.Reason
	}
	return fmt.Sprintf("disconnected: %s: %v", e.Reason, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// AsDisconnect classifies err into a DisconnectError.
// A DisconnectError anywhere in the chain is returned as is; anything else becomes the cause
// of a new DisconnectError whose reason names the error kind. Returns nil for a nil err.
func AsDisconnect(err error) *DisconnectError {
	if err == nil {
		return nil
	}
	var de *DisconnectError
	if errors.As(err, &de) {
		return de
	}
	return &DisconnectError{Reason: describe(err), Err: err}
}

// describe names the kind of a lifecycle failure.
func describe(err error) string {
	var (
		re  *ReadError
		pe  *ProcessingError
		mpe *protocol.MalformedPacketError
	)
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		return "timed out"
	case errors.As(err, &mpe) && mpe.State == protocol.StateNoData:
		return "peer closed the connection"
	case errors.Is(err, protocol.ErrPartialData):
		return "peer closed the connection mid-packet"
	case errors.As(err, &mpe):
		return "malformed packet"
	case errors.As(err, &re):
		return "read error"
	case errors.As(err, &pe):
		return "processing error"
	case errors.Is(err, ErrServerClosed):
		return "server shutting down"
	default:
		return "unexpected error"
	}
}

// disconnectKind is the metrics label for a DisconnectError.
func disconnectKind(de *DisconnectError) string {
	var (
		re  *ReadError
		pe  *ProcessingError
		mpe *protocol.MalformedPacketError
	)
	switch {
	case de == nil:
		return "none"
	case errors.Is(de, protocol.ErrTimeout):
		return "timeout"
	case errors.Is(de, ErrServerClosed):
		return "shutdown"
	case errors.Is(de, ErrVersionMismatch), errors.Is(de, ErrHandshakeFailed):
		return "handshake"
	case errors.As(de, &mpe) && mpe.State == protocol.StateNoData:
		return "closed"
	case errors.Is(de, protocol.ErrPartialData):
		return "partial"
	case errors.As(de, &re):
		return "read_error"
	case errors.As(de, &pe):
		return "processing_error"
	case errors.As(de, &mpe):
		return "malformed"
	default:
		return "other"
	}
}
