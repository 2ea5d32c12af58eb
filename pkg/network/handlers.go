package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// Handler receives the lifecycle callbacks of a server-side connection.
//
// The server drives every accepted connection through
// OnConnect -> (ReadPacket -> OnPacket)* -> OnClose, then closes it.
//   - OnConnect runs once before the loop. A non-nil error skips the loop.
//   - OnPacket runs for every packet, in arrival order.
//   - OnError runs when a read or OnPacket fails with anything but a *DisconnectError.
//     It must end the session by returning a *DisconnectError; any other return value,
//     nil included, is turned into one.
//   - OnClose runs exactly once with the reason the session ended.
type Handler interface {
	OnConnect(p *Peer) error
	OnPacket(p *Peer, pkt protocol.Packet) error
	OnError(p *Peer, err error) error
	OnClose(p *Peer, reason *DisconnectError)
}

// DefaultHandler gates every connection on a Handshake carrying ProtocolVersion and answers
// every Ping with a Pong echoing its token.
type DefaultHandler struct {
	ProtocolVersion uint32

	// StrictUnexpected disconnects on server-bound packets other than Ping, such as a repeated
	// Handshake, instead of logging and ignoring them. Client-bound packets always disconnect.
	StrictUnexpected bool
}

// NewDefaultHandler returns a DefaultHandler for the current protocol version.
func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{ProtocolVersion: protocol.ProtocolVersion}
}

// OnConnect requires the first packet to be a Handshake with a matching version.
func (h *DefaultHandler) OnConnect(p *Peer) error {
	pkt, err := p.ReadPacket()
	if err != nil {
		var mpe *protocol.MalformedPacketError
		if errors.As(err, &mpe) && mpe.State == protocol.StateUnexpectedPacket {
			return &DisconnectError{Reason: "expected handshake, got " + p.Registry().Name(mpe.PacketID), Err: err}
		}
		return &DisconnectError{Reason: "no handshake received", Err: err}
	}
	hs, ok := pkt.(*protocol.Handshake)
	if !ok {
		return &DisconnectError{
			Reason: "expected handshake, got " + p.Registry().Name(pkt.ID()),
			Err:    ErrHandshakeFailed,
		}
	}
	if hs.ProtocolVersion != h.ProtocolVersion {
		p.Logger().Warn().
			Uint32("client version", hs.ProtocolVersion).
			Uint32("server version", h.ProtocolVersion).
			Msg("Protocol version mismatch")
		return &DisconnectError{
			Reason: fmt.Sprintf("client speaks protocol version %d, server speaks %d", hs.ProtocolVersion, h.ProtocolVersion),
			Err:    ErrVersionMismatch,
		}
	}
	p.SetProtocolVersion(hs.ProtocolVersion)
	p.Logger().Info().Uint32("version", hs.ProtocolVersion).Msg("Handshake accepted")
	return nil
}

// OnPacket answers pings. Other server-bound packets are unexpected once the handshake is done.
func (h *DefaultHandler) OnPacket(p *Peer, pkt protocol.Packet) error {
	switch pkt := pkt.(type) {
	case *protocol.Ping:
		return p.Send(&protocol.Pong{Token: pkt.Token})
	default:
		if h.StrictUnexpected {
			return protocol.NewUnexpectedPacketError(pkt)
		}
		p.Logger().Warn().Str("packet", p.Registry().Name(pkt.ID())).Msg("Ignoring unexpected packet")
		return nil
	}
}

// OnError logs the failure and disconnects.
func (h *DefaultHandler) OnError(p *Peer, err error) error {
	ev := p.Logger().Error().Err(err)
	var mpe *protocol.MalformedPacketError
	if errors.As(err, &mpe) {
		ev = ev.Func(mpe.Zerolog)
	}
	ev.Msg("Connection error")
	return AsDisconnect(err)
}

// OnClose logs the reason the session ended.
func (h *DefaultHandler) OnClose(p *Peer, reason *DisconnectError) {
	p.Logger().Info().
		Str("reason", reason.Reason).
		AnErr("cause", reason.Err).
		Dur("duration", time.Since(p.ConnectedAt)).
		Msg("Client disconnected")
}
