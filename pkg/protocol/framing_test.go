package protocol

import (
	"bytes"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePacketLayout(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
		want []byte
	}{
		{"handshake", &Handshake{ProtocolVersion: 1}, []byte{0x02, 0x03, 0x01}},
		{"ping", &Ping{Token: "tok-A"}, []byte{0x07, 0x01, 0x05, 't', 'o', 'k', '-', 'A'}},
		{"pong empty token", &Pong{}, []byte{0x02, 0x02, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(nil)
			require.NoError(t, WritePacket(buf, tt.pkt))
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestPacketRoundTrip(t *testing.T) {
	packets := []Packet{
		&Handshake{ProtocolVersion: ProtocolVersion},
		&Handshake{ProtocolVersion: 1<<32 - 1},
		&Ping{Token: "tok-A"},
		&Ping{Token: randomdata.Alphanumeric(200)},
		&Pong{Token: "żółw 🐢"},
		&Pong{},
	}

	// Back to back on the same stream.
	stream := NewBuffer(nil)
	for _, p := range packets {
		require.NoError(t, WritePacket(stream, p))
	}
	for _, want := range packets {
		got, err := ReadPacket(stream, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, stream.Remaining())

	_, err := ReadPacket(stream, nil)
	assert.True(t, IsMalformed(err, StateMalformedData), "buffer exhaustion is not a peer closure: %v", err)
}

func TestReadPacketNoData(t *testing.T) {
	_, err := ReadPacket(&byteSource{}, nil)
	require.True(t, IsMalformed(err, StateNoData), "got %v", err)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadPacketClosedMidFrame(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"inside length", []byte{0x80}},
		{"inside body", []byte{0x05, 0x01, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPacket(&byteSource{data: tt.data}, nil)
			require.True(t, IsMalformed(err, StateMalformedData), "got %v", err)
			assert.ErrorIs(t, err, ErrPartialData)
		})
	}
}

func TestReadPacketTooLarge(t *testing.T) {
	buf := NewBuffer(nil)
	require.NoError(t, buf.WriteVarint(MaxPacketLength+1, VarintBits))
	_, err := ReadPacket(buf, nil)
	require.True(t, IsMalformed(err, StateMalformedData), "got %v", err)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestDecodePacketFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		state   MalformedState
		id      uint32
		hasID   bool
		wrapped error
	}{
		{"empty body", []byte{}, StateMalformedData, 0, false, ErrOutOfData},
		{"unknown id", []byte{0x09, 0x00}, StateUnrecognizedID, 9, true, nil},
		{"zero id", []byte{0x00}, StateUnrecognizedID, 0, true, nil},
		{"truncated token", []byte{0x01, 0x05, 'a'}, StateMalformedBody, PingID, true, ErrOutOfData},
		{"invalid utf-8 token", []byte{0x02, 0x01, 0xFF}, StateMalformedBody, PongID, true, ErrInvalidUTF8},
		{"trailing bytes", []byte{0x03, 0x01, 0xAA, 0xBB}, StateMalformedBody, HandshakeID, true, ErrTrailingData},
		{"oversized version", []byte{0x03, 0xFF, 0xFF, 0xFF, 0xFF, 0x1F}, StateMalformedBody, HandshakeID, true, ErrVarintOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(NewBuffer(tt.body), nil)
			require.Error(t, err)

			var mpe *MalformedPacketError
			require.ErrorAs(t, err, &mpe)
			assert.Equal(t, tt.state, mpe.State)
			assert.Equal(t, tt.hasID, mpe.HasID)
			if tt.hasID {
				assert.Equal(t, tt.id, mpe.PacketID)
			}
			if tt.wrapped != nil {
				assert.ErrorIs(t, err, tt.wrapped)
			}
		})
	}
}

func TestDecodePacketCustomRegistry(t *testing.T) {
	reg := MustRegistry(HandshakeType)

	buf := NewBuffer(nil)
	require.NoError(t, WritePacket(buf, &Ping{Token: "x"}))
	_, err := ReadPacket(buf, reg)
	assert.True(t, IsMalformed(err, StateUnrecognizedID), "ping is not part of the custom table: %v", err)
}

func TestMalformedPacketErrorMessage(t *testing.T) {
	err := &MalformedPacketError{State: StateUnrecognizedID, PacketID: 9, HasID: true}
	assert.Equal(t, "Unknown packet id (Packet ID: 9)", err.Error())

	err = &MalformedPacketError{State: StateNoData, Err: ErrNoData}
	assert.Equal(t, "No data were received (Underlying error: peer did not respond with any information)", err.Error())

	unexpected := NewUnexpectedPacketError(&Pong{Token: "t"})
	assert.Equal(t, StateUnexpectedPacket, unexpected.State)
	assert.Contains(t, unexpected.Error(), `Pong(token="t")`)
	assert.True(t, IsMalformed(unexpected, StateUnexpectedPacket))
	assert.False(t, IsMalformed(unexpected, StateNoData))
	assert.False(t, IsMalformed(ErrNoData, StateNoData))
}

func TestMalformedPacketErrorZerolog(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	err := &MalformedPacketError{State: StateMalformedBody, PacketID: 3, HasID: true, Err: ErrTrailingData}
	logger.Warn().Func(err.Zerolog).Msg("bad packet")

	assert.Contains(t, out.String(), `"state":"Failed to deserialize packet"`)
	assert.Contains(t, out.String(), `"packet id":3`)
	assert.Contains(t, out.String(), `"cause":"trailing bytes after packet body"`)
}

func TestEncodePacketTooLarge(t *testing.T) {
	_, err := EncodePacket(&Ping{Token: string(bytes.Repeat([]byte{'a'}, MaxUTFLength))})
	require.NoError(t, err, "a maximal string still fits into a frame")

	big := &blob{size: MaxPacketLength}
	_, err = EncodePacket(big)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

// blob is a test-only packet with an arbitrarily sized payload.
type blob struct{ size int }

func (*blob) ID() uint32           { return 99 }
func (*blob) Direction() Direction { return ServerBound }
func (b *blob) Serialize(buf *Buffer) error {
	return buf.WriteRaw(make([]byte, b.size))
}
