package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Codec errors
var (
	ErrOutOfData       = errors.New("not enough data remaining")
	ErrInvalidBitWidth = errors.New("varint bit width must be between 1 and 64")
	ErrVarintTooLong   = errors.New("varint is too long")
	ErrVarintOverflow  = errors.New("varint exceeds its bit budget")
	ErrInvalidUTF8     = errors.New("invalid UTF-8 sequence")
	ErrStringTooLong   = errors.New("string exceeds maximum length")
	ErrPacketTooLarge  = errors.New("packet exceeds maximum length")
	ErrTrailingData    = errors.New("trailing bytes after packet body")
)

// Transport errors, reported by live RawReader implementations.
var (
	// ErrTimeout means a single read did not complete within the connection's timeout.
	ErrTimeout = errors.New("read timed out")
	// ErrNoData means the source closed before delivering any byte of the requested read.
	ErrNoData = errors.New("peer did not respond with any information")
	// ErrPartialData is matched by every *PartialDataError.
	ErrPartialData = errors.New("peer stopped responding mid-read")
)

// PartialDataError reports a source that closed after delivering some, but not all, of a read.
type PartialDataError struct {
	// Bytes received before the closure.
	Partial []byte
	// Number of bytes the read asked for.
	Want int
	// Underlying cause, if any (io.EOF, net.ErrClosed, ...).
	Err error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("peer stopped responding (got %d bytes, but expected %d bytes); partial data: %q",
		len(e.Partial), e.Want, e.Partial)
}

// Unwrap exposes both ErrPartialData and the underlying cause.
func (e *PartialDataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialData}
	}
	return []error{ErrPartialData, e.Err}
}

// MalformedState classifies why a packet could not be received.
type MalformedState uint8

const (
	// StateNoData: the peer sent nothing where a frame should have started.
	StateNoData MalformedState = iota + 1
	// StateMalformedData: the length or ID field could not be read or decoded.
	StateMalformedData
	// StateUnrecognizedID: the ID is not in the registry.
	StateUnrecognizedID
	// StateMalformedBody: the payload did not decode into the claimed type.
	StateMalformedBody
	// StateUnexpectedPacket: a valid packet travelling in the wrong direction for the receiver.
	StateUnexpectedPacket
)

// String returns the human readable description of the state.
func (s MalformedState) String() string {
	switch s {
	case StateNoData:
		return "No data were received"
	case StateMalformedData:
		return "Failed to read packet data"
	case StateUnrecognizedID:
		return "Unknown packet id"
	case StateMalformedBody:
		return "Failed to deserialize packet"
	case StateUnexpectedPacket:
		return "This packet type was not expected"
	default:
		return "UNKNOWN"
	}
}

// MalformedPacketError is returned by the framing layer when a packet could not be received.
type MalformedPacketError struct {
	State MalformedState
	// PacketID is meaningful when HasID is set.
	PacketID uint32
	HasID    bool
	// Packet is set for StateUnexpectedPacket.
	Packet Packet
	// Err is the underlying cause, if any.
	Err error
}

// NewUnexpectedPacketError reports p as travelling in a direction the receiver does not accept.
func NewUnexpectedPacketError(p Packet) *MalformedPacketError {
	return &MalformedPacketError{State: StateUnexpectedPacket, PacketID: p.ID(), HasID: true, Packet: p}
}

func (e *MalformedPacketError) Error() string {
	var tail []string
	if e.HasID {
		tail = append(tail, fmt.Sprintf("Packet ID: %d", e.PacketID))
	}
	if e.Err != nil {
		tail = append(tail, "Underlying error: "+e.Err.Error())
	}
	if e.Packet != nil {
		tail = append(tail, fmt.Sprintf("Packet: %v", e.Packet))
	}
	msg := e.State.String()
	if len(tail) > 0 {
		msg += " (" + strings.Join(tail, ", ") + ")"
	}
	return msg
}

func (e *MalformedPacketError) Unwrap() error {
	return e.Err
}

// Zerolog attaches the error's fields to the given log event.
// Intended to be given to *zerolog.Event.Func().
func (e *MalformedPacketError) Zerolog(ev *zerolog.Event) {
	ev.Str("state", e.State.String())
	if e.HasID {
		ev.Uint32("packet id", e.PacketID)
	}
	if e.Err != nil {
		ev.AnErr("cause", e.Err)
	}
}

// IsMalformed reports whether err is a *MalformedPacketError in the given state.
func IsMalformed(err error, state MalformedState) bool {
	var mpe *MalformedPacketError
	return errors.As(err, &mpe) && mpe.State == state
}
