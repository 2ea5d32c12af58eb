package protocol

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// Direction tags which side of a connection may receive a packet.
// It is a bit set; a truly bidirectional type carries both bits.
type Direction uint8

const (
	// ServerBound packets travel client -> server.
	ServerBound Direction = 1 << iota
	// ClientBound packets travel server -> client.
	ClientBound
)

// Has reports whether d includes every bit of other.
func (d Direction) Has(other Direction) bool {
	return other != 0 && d&other == other
}

func (d Direction) String() string {
	switch d {
	case ServerBound:
		return "server-bound"
	case ClientBound:
		return "client-bound"
	case ServerBound | ClientBound:
		return "bidirectional"
	default:
		return "none"
	}
}

// Packet is one protocol message.
// Instances are built once by the sender or by a registry decoder and never mutated afterwards.
type Packet interface {
	// ID is fixed per concrete type and unique across a registry.
	ID() uint32
	// Direction tells which side may receive the packet.
	Direction() Direction
	// Serialize appends the packet's payload (not its ID) to buf.
	Serialize(buf *Buffer) error
}

// A PacketType is a registry entry: the tag and the constructor for one concrete packet.
type PacketType struct {
	ID        uint32
	Name      string
	Direction Direction
	// Decode builds the packet from its payload.
	Decode func(buf *Buffer) (Packet, error)
}

// Registry maps packet IDs to packet types.
// It is immutable once built and safe to share between goroutines.
type Registry struct {
	types map[uint32]PacketType
}

var (
	ErrDuplicatePacketID = errors.New("duplicate packet id")
	ErrIncompleteType    = errors.New("packet type is incomplete")
)

// NewRegistry builds a registry over the given closed set of packet types.
// Every type must carry a decoder and a direction, and IDs must be unique.
func NewRegistry(types ...PacketType) (*Registry, error) {
	r := &Registry{types: make(map[uint32]PacketType, len(types))}
	for _, t := range types {
		if t.Decode == nil {
			return nil, fmt.Errorf("%w: packet %d (%s) has no decoder", ErrIncompleteType, t.ID, t.Name)
		}
		if t.Direction&(ServerBound|ClientBound) == 0 {
			return nil, fmt.Errorf("%w: packet %d (%s) has no direction", ErrIncompleteType, t.ID, t.Name)
		}
		if prev, found := r.types[t.ID]; found {
			return nil, fmt.Errorf("%w: %d is used by both %s and %s", ErrDuplicatePacketID, t.ID, prev.Name, t.Name)
		}
		r.types[t.ID] = t
	}
	return r, nil
}

// MustRegistry is NewRegistry for tables known at compile time; it panics on error.
func MustRegistry(types ...PacketType) *Registry {
	r, err := NewRegistry(types...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the process-wide reference table {Ping, Pong, Handshake}.
// It is built on first use and never changes afterwards.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	return MustRegistry(PingType, PongType, HandshakeType)
})

// Lookup returns the type registered under id.
func (r *Registry) Lookup(id uint32) (PacketType, bool) {
	t, found := r.types[id]
	return t, found
}

// IDs returns every registered ID in ascending order.
func (r *Registry) IDs() []uint32 {
	ids := make([]uint32, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Name returns the registered name of id, or its decimal form if unknown.
func (r *Registry) Name(id uint32) string {
	if t, found := r.types[id]; found {
		return t.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}
