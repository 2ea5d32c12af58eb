// Package protocol implements the zerocom wire protocol.
//
// The protocol package defines the framed packet format, the typed packet
// registry, the in-memory Buffer and the stream codec shared by every reader
// and writer of the protocol.
//
// # Protocol Overview
//
// zerocom runs over a persistent byte stream (TCP) and features:
//   - Varint length-prefixed frames
//   - A varint packet ID resolved through an immutable Registry
//   - A mandatory Handshake gating every connection on the protocol version
//   - Ping/Pong round trips echoing an opaque UTF-8 token
//
// # Packet Types
//
//   - Ping (1, server-bound): token to be echoed
//   - Pong (2, client-bound): the echoed token
//   - Handshake (3, server-bound): protocol version (32-bit varint)
//
// IDs 0 and >= 4 are free for extension. Unknown IDs are a decode failure,
// never a silent skip.
//
// # Frame Format
//
// Every packet travels as:
//   - Length (varint, 32-bit budget): byte length of Packet ID + Data
//   - Packet ID (varint, 32-bit budget): registry key
//   - Data: the payload written by Packet.Serialize
//
// # Encodings
//
// Varints carry 7 bits per byte, least significant group first, with the
// high bit set on every byte but the last. Each varint has a bit budget;
// encodings that never terminate within the budget, or that carry more bits
// than it allows, are rejected. Strings are a varint byte length followed by
// strictly validated UTF-8.
//
// # Errors
//
// Live readers report ErrTimeout, ErrNoData and *PartialDataError. The
// framing layer rewraps every failure into a *MalformedPacketError whose
// State tells which part of the frame was at fault.
//
// # Usage Example
//
//	// Send a ping
//	if err := protocol.WritePacket(conn, &protocol.Ping{Token: "tok-A"}); err != nil {
//	    return err
//	}
//
//	// Receive the answer
//	pkt, err := protocol.ReadPacket(conn, protocol.DefaultRegistry())
//	if err != nil {
//	    return err
//	}
//	pong, ok := pkt.(*protocol.Pong)
package protocol
