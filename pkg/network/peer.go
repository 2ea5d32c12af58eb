package network

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// Peer is one side's handle on an established connection.
// Handler callbacks receive the server-side Peer; a Client drives a client-side one.
type Peer struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn     *Connection
	registry *protocol.Registry
	outbound protocol.Direction
	logger   zerolog.Logger
	metrics  *Metrics

	// Set by the handshake gate.
	version atomic.Uint32

	lastSeen atomic.Int64
	received atomic.Uint64
	sent     atomic.Uint64
}

// PeerInfo is a snapshot of a Peer, as reported in server stats.
type PeerInfo struct {
	ID              string    `json:"id"`
	RemoteAddr      string    `json:"remote_addr"`
	ConnectedAt     time.Time `json:"connected_at"`
	LastSeen        time.Time `json:"last_seen"`
	ProtocolVersion uint32    `json:"protocol_version,omitempty"`
	PacketsReceived uint64    `json:"packets_received"`
	PacketsSent     uint64    `json:"packets_sent"`
}

func newPeer(conn *Connection, outbound protocol.Direction, reg *protocol.Registry, logger zerolog.Logger, metrics *Metrics) *Peer {
	now := time.Now()
	p := &Peer{
		ID:          uuid.NewString(),
		RemoteAddr:  conn.RemoteAddr(),
		ConnectedAt: now,
		conn:        conn,
		registry:    reg,
		outbound:    outbound,
		metrics:     metrics,
	}
	p.logger = logger.With().Str("peer", p.ID).Str("remote", p.RemoteAddr).Logger()
	p.lastSeen.Store(now.UnixNano())
	return p
}

// Conn returns the underlying connection.
func (p *Peer) Conn() *Connection { return p.conn }

// Logger returns the peer-scoped logger.
func (p *Peer) Logger() *zerolog.Logger { return &p.logger }

// Registry returns the registry packets from this peer are decoded with.
func (p *Peer) Registry() *protocol.Registry { return p.registry }

// ProtocolVersion returns the version accepted during the handshake, or 0 before it.
func (p *Peer) ProtocolVersion() uint32 { return p.version.Load() }

// SetProtocolVersion records the version accepted during the handshake.
func (p *Peer) SetProtocolVersion(v uint32) { p.version.Store(v) }

// LastSeen returns the time the last packet was received.
func (p *Peer) LastSeen() time.Time { return time.Unix(0, p.lastSeen.Load()) }

// Send writes pkt as one frame.
// Packets that may not travel towards the remote side fail with a StateUnexpectedPacket error
// and nothing is written.
func (p *Peer) Send(pkt protocol.Packet) error {
	if !pkt.Direction().Has(p.outbound) {
		return protocol.NewUnexpectedPacketError(pkt)
	}
	if err := protocol.WritePacket(p.conn, pkt); err != nil {
		return err
	}
	p.sent.Add(1)
	p.metrics.packetSent(p.registry.Name(pkt.ID()))
	p.logger.Debug().Str("packet", p.registry.Name(pkt.ID())).Msg("Packet sent")
	return nil
}

// ReadPacket reads and decodes the next frame.
// A packet that may not travel towards this side, such as a Pong read by a server, fails with
// a StateUnexpectedPacket error.
func (p *Peer) ReadPacket() (protocol.Packet, error) {
	pkt, err := protocol.ReadPacket(p.conn, p.registry)
	if err != nil {
		return nil, err
	}
	if !pkt.Direction().Has(p.inbound()) {
		return nil, protocol.NewUnexpectedPacketError(pkt)
	}
	p.received.Add(1)
	p.lastSeen.Store(time.Now().UnixNano())
	p.metrics.packetReceived(p.registry.Name(pkt.ID()))
	p.logger.Debug().Str("packet", p.registry.Name(pkt.ID())).Msg("Packet received")
	return pkt, nil
}

// inbound is the direction of packets this side may receive.
func (p *Peer) inbound() protocol.Direction {
	if p.outbound == protocol.ClientBound {
		return protocol.ServerBound
	}
	return protocol.ClientBound
}

// Close closes the underlying connection.
func (p *Peer) Close() error { return p.conn.Close() }

// Info returns a snapshot of the peer.
func (p *Peer) Info() PeerInfo {
	return PeerInfo{
		ID:              p.ID,
		RemoteAddr:      p.RemoteAddr,
		ConnectedAt:     p.ConnectedAt,
		LastSeen:        p.LastSeen(),
		ProtocolVersion: p.ProtocolVersion(),
		PacketsReceived: p.received.Load(),
		PacketsSent:     p.sent.Load(),
	}
}
