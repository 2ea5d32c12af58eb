package protocol

import (
	"errors"
	"fmt"
)

// PACKET FORMAT:
// | Field name  | Field type    | Notes                                 |
// |-------------|---------------|---------------------------------------|
// | Length      | 32-bit varint | Length (in bytes) of PacketID + Data  |
// | Packet ID   | 32-bit varint | Registry key                          |
// | Data        | byte array    | Payload produced by Packet.Serialize  |

// EncodePacket returns the frame body of p: its varint ID followed by its payload.
func EncodePacket(p Packet) (*Buffer, error) {
	body := NewBuffer(make([]byte, 0, 32))
	if err := body.WriteVarint(uint64(p.ID()), VarintBits); err != nil {
		return nil, err
	}
	if err := p.Serialize(body); err != nil {
		return nil, fmt.Errorf("failed to serialize packet %d: %w", p.ID(), err)
	}
	if body.Len() > MaxPacketLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, body.Len(), MaxPacketLength)
	}
	return body, nil
}

// WritePacket writes p to w: first the varint length of the frame body, then the body itself.
func WritePacket(w RawWriter, p Packet) error {
	body, err := EncodePacket(p)
	if err != nil {
		return err
	}
	if err := WriteVarint(w, uint64(body.Len()), VarintBits); err != nil {
		return err
	}
	return w.WriteRaw(body.Bytes())
}

// ReadPacket reads one frame from r and decodes it through reg (DefaultRegistry if nil).
//
// A source that closes before the first byte of the frame yields StateNoData; any other failure
// while reading the length or the body yields StateMalformedData. Decoding failures are reported
// by DecodePacket.
func ReadPacket(r RawReader, reg *Registry) (Packet, error) {
	length, err := ReadVarint(r, VarintBits)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, &MalformedPacketError{State: StateNoData, Err: err}
		}
		return nil, &MalformedPacketError{State: StateMalformedData, Err: err}
	}
	if length > MaxPacketLength {
		return nil, &MalformedPacketError{
			State: StateMalformedData,
			Err:   fmt.Errorf("%w: frame announces %d bytes (max %d)", ErrPacketTooLarge, length, MaxPacketLength),
		}
	}
	data, err := r.ReadExactly(int(length))
	if err != nil {
		return nil, &MalformedPacketError{State: StateMalformedData, Err: err}
	}
	return DecodePacket(NewBuffer(data), reg)
}

// DecodePacket decodes a frame body (varint ID + payload) through reg (DefaultRegistry if nil).
//
// The body must be consumed exactly; leftover bytes are a StateMalformedBody failure
// wrapping ErrTrailingData.
func DecodePacket(body *Buffer, reg *Registry) (Packet, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	rawID, err := body.ReadVarint(VarintBits)
	if err != nil {
		return nil, &MalformedPacketError{State: StateMalformedData, Err: err}
	}
	id := uint32(rawID)

	typ, found := reg.Lookup(id)
	if !found {
		return nil, &MalformedPacketError{State: StateUnrecognizedID, PacketID: id, HasID: true}
	}

	p, err := typ.Decode(body)
	if err != nil {
		return nil, &MalformedPacketError{State: StateMalformedBody, PacketID: id, HasID: true, Err: err}
	}
	if n := body.Remaining(); n > 0 {
		return nil, &MalformedPacketError{
			State:    StateMalformedBody,
			PacketID: id,
			HasID:    true,
			Err:      fmt.Errorf("%w: %d bytes", ErrTrailingData, n),
		}
	}
	return p, nil
}
