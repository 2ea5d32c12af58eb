package protocol

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Handshake is the mandatory first packet of every connection.
// It carries the protocol version the client speaks.
type Handshake struct {
	ProtocolVersion uint32
}

// HandshakeType registers Handshake.
var HandshakeType = PacketType{
	ID:        HandshakeID,
	Name:      "HANDSHAKE",
	Direction: ServerBound,
	Decode:    decodeHandshake,
}

func (*Handshake) ID() uint32           { return HandshakeID }
func (*Handshake) Direction() Direction { return ServerBound }

// Serialize writes the protocol version as a 32-bit varint.
func (h *Handshake) Serialize(buf *Buffer) error {
	return buf.WriteVarint(uint64(h.ProtocolVersion), VarintBits)
}

func (h *Handshake) String() string {
	return fmt.Sprintf("Handshake(protocol_version=%d)", h.ProtocolVersion)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (h *Handshake) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", HandshakeType.Name).Uint32("protocol version", h.ProtocolVersion)
}

func decodeHandshake(buf *Buffer) (Packet, error) {
	v, err := buf.ReadVarint(VarintBits)
	if err != nil {
		return nil, err
	}
	return &Handshake{ProtocolVersion: uint32(v)}, nil
}
