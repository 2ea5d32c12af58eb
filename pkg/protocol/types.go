package protocol

// Protocol constants
const (
	// Protocol version compared for exact equality during the handshake
	ProtocolVersion uint32 = 1

	// Bit budget of every varint on the wire (frame length, packet ID, handshake version)
	VarintBits uint = 32

	// MaxVarintBytes is the longest varint any bit budget (up to 64 bits) can produce.
	MaxVarintBytes = 10
)

// Packet IDs of the reference registry. 0 and >= 4 are free for extension.
const (
	PingID      uint32 = 1
	PongID      uint32 = 2
	HandshakeID uint32 = 3
)

// Allocation limits applied while decoding, so that a hostile length prefix
// cannot make a reader allocate arbitrary memory.
const (
	// MaxUTFLength is the largest accepted UTF-8 string payload (1 MiB).
	MaxUTFLength = 1 << 20

	// MaxPacketLength is the largest accepted frame body, packet ID included (2 MiB).
	MaxPacketLength = 2 << 20
)
