package protocol

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Ping asks the server to echo Token back in a Pong.
type Ping struct {
	Token string
}

// Pong answers a Ping with the same Token.
type Pong struct {
	Token string
}

// Ping and Pong share a wire format: a single UTF-8 token.
var (
	PingType = PacketType{
		ID:        PingID,
		Name:      "PING",
		Direction: ServerBound,
		Decode: func(buf *Buffer) (Packet, error) {
			token, err := buf.ReadUTF()
			if err != nil {
				return nil, err
			}
			return &Ping{Token: token}, nil
		},
	}
	PongType = PacketType{
		ID:        PongID,
		Name:      "PONG",
		Direction: ClientBound,
		Decode: func(buf *Buffer) (Packet, error) {
			token, err := buf.ReadUTF()
			if err != nil {
				return nil, err
			}
			return &Pong{Token: token}, nil
		},
	}
)

func (*Ping) ID() uint32           { return PingID }
func (*Ping) Direction() Direction { return ServerBound }

func (p *Ping) Serialize(buf *Buffer) error { return buf.WriteUTF(p.Token) }

func (p *Ping) String() string { return fmt.Sprintf("Ping(token=%q)", p.Token) }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (p *Ping) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", PingType.Name).Str("token", p.Token)
}

func (*Pong) ID() uint32           { return PongID }
func (*Pong) Direction() Direction { return ClientBound }

func (p *Pong) Serialize(buf *Buffer) error { return buf.WriteUTF(p.Token) }

func (p *Pong) String() string { return fmt.Sprintf("Pong(token=%q)", p.Token) }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (p *Pong) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", PongType.Name).Str("token", p.Token)
}
