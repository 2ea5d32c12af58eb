package protocol

import (
	"math"
	"strings"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteSource hands out its data one ReadExactly at a time and reports ErrNoData once drained,
// the way a live connection does when the peer closes.
type byteSource struct {
	data  []byte
	reads int
}

func (s *byteSource) ReadExactly(n int) ([]byte, error) {
	s.reads++
	if len(s.data) == 0 {
		return nil, ErrNoData
	}
	if n > len(s.data) {
		got := s.data
		s.data = nil
		return nil, &PartialDataError{Partial: got, Want: n}
	}
	out := s.data[:n]
	s.data = s.data[n:]
	return out, nil
}

// recordingSink keeps every WriteRaw call separately.
type recordingSink struct {
	writes [][]byte
}

func (s *recordingSink) WriteRaw(p []byte) error {
	s.writes = append(s.writes, append([]byte(nil), p...))
	return nil
}

func TestVarintEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"max 1 byte", 127, []byte{0x7F}},
		{"min 2 bytes", 128, []byte{0x80, 0x01}},
		{"255", 255, []byte{0xFF, 0x01}},
		{"25565", 25565, []byte{0xDD, 0xC7, 0x01}},
		{"max 3 bytes", 2097151, []byte{0xFF, 0xFF, 0x7F}},
		{"max int32", math.MaxInt32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
		{"max uint32", math.MaxUint32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			require.NoError(t, WriteVarint(sink, tt.value, 32))
			require.Len(t, sink.writes, 1, "varint must be written in a single raw write")
			assert.Equal(t, tt.want, sink.writes[0])

			src := &byteSource{data: tt.want}
			got, err := ReadVarint(src, 32)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
			assert.Equal(t, len(tt.want), src.reads, "decoding must read one byte per group")
		})
	}
}

func TestVarintRoundTripBudgets(t *testing.T) {
	for _, bits := range []uint{1, 7, 8, 16, 31, 32, 35, 63, 64} {
		var max uint64 = math.MaxUint64
		if bits < 64 {
			max = 1<<bits - 1
		}
		for _, v := range []uint64{0, 1, max / 3, max / 2, max - 1, max} {
			buf := NewBuffer(nil)
			require.NoError(t, buf.WriteVarint(v, bits), "bits=%d v=%d", bits, v)
			got, err := buf.ReadVarint(bits)
			require.NoError(t, err, "bits=%d v=%d", bits, v)
			assert.Equal(t, v, got, "bits=%d", bits)
			assert.Zero(t, buf.Remaining())
		}
	}
}

func TestWriteVarintOverflow(t *testing.T) {
	buf := NewBuffer(nil)
	assert.ErrorIs(t, buf.WriteVarint(1<<32, 32), ErrVarintOverflow)
	assert.ErrorIs(t, buf.WriteVarint(300, 8), ErrVarintOverflow)
	assert.Zero(t, buf.Len(), "a rejected value must not be partially written")

	assert.ErrorIs(t, buf.WriteVarint(1, 0), ErrInvalidBitWidth)
	assert.ErrorIs(t, buf.WriteVarint(1, 65), ErrInvalidBitWidth)
}

func TestReadVarintMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		bits uint
		want error
	}{
		{"value beyond 32 bits", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x1F}, 32, ErrVarintOverflow},
		{"no terminator within 32 bits", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x8F, 0x01}, 32, ErrVarintTooLong},
		{"no terminator within 8 bits", []byte{0x80, 0x81, 0x00}, 8, ErrVarintTooLong},
		{"value beyond 8 bits", []byte{0x80, 0x02}, 8, ErrVarintOverflow},
		{"empty buffer", []byte{}, 32, ErrOutOfData},
		{"truncated", []byte{0x80, 0x80}, 32, ErrOutOfData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuffer(tt.data).ReadVarint(tt.bits)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadVarintClosure(t *testing.T) {
	t.Run("nothing arrived", func(t *testing.T) {
		_, err := ReadVarint(&byteSource{}, 32)
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("closed mid varint", func(t *testing.T) {
		_, err := ReadVarint(&byteSource{data: []byte{0x80, 0x80}}, 32)
		require.ErrorIs(t, err, ErrPartialData)
		assert.NotErrorIs(t, err, ErrNoData)

		var pde *PartialDataError
		require.ErrorAs(t, err, &pde)
		assert.Equal(t, []byte{0x80, 0x80}, pde.Partial)
	})
}

func TestReadUTFClosure(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		partial []byte
		want    int
	}{
		{"closed after length", []byte{0x03}, []byte{0x03}, 4},
		{"closed mid string", []byte{0x03, 'a', 'b'}, []byte{0x03, 'a', 'b'}, 4},
		{"closed after long length", []byte{0x80, 0x01}, []byte{0x80, 0x01}, 130},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadUTF(&byteSource{data: tt.data})
			require.ErrorIs(t, err, ErrPartialData)
			assert.NotErrorIs(t, err, ErrNoData)

			var pde *PartialDataError
			require.ErrorAs(t, err, &pde)
			assert.Equal(t, tt.partial, pde.Partial)
			assert.Equal(t, tt.want, pde.Want)
		})
	}

	t.Run("nothing arrived", func(t *testing.T) {
		_, err := ReadUTF(&byteSource{})
		assert.ErrorIs(t, err, ErrNoData)
		assert.NotErrorIs(t, err, ErrPartialData)
	})
}

func TestUTFRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"a",
		"hello world",
		"żółć gęślą jaźń",
		"日本語テキスト",
		"emoji \U0001F600 and é",
		strings.Repeat("x", 300),
		randomdata.SillyName(),
		randomdata.Paragraph(),
	}
	for _, s := range tests {
		buf := NewBuffer(nil)
		require.NoError(t, buf.WriteUTF(s))
		got, err := buf.ReadUTF()
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Zero(t, buf.Remaining())
	}
}

func TestUTFSingleWrite(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, WriteUTF(sink, "tok"))
	require.Len(t, sink.writes, 1)
	assert.Equal(t, []byte{3, 't', 'o', 'k'}, sink.writes[0])
}

func TestUTFInvalid(t *testing.T) {
	t.Run("write rejects invalid UTF-8", func(t *testing.T) {
		buf := NewBuffer(nil)
		assert.ErrorIs(t, buf.WriteUTF("bad \xff byte"), ErrInvalidUTF8)
		assert.Zero(t, buf.Len())
	})
	t.Run("read rejects invalid UTF-8", func(t *testing.T) {
		_, err := NewBuffer([]byte{2, 0xC3, 0x28}).ReadUTF()
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
	t.Run("read rejects truncated string", func(t *testing.T) {
		_, err := NewBuffer([]byte{5, 'a', 'b'}).ReadUTF()
		assert.ErrorIs(t, err, ErrOutOfData)
	})
	t.Run("read rejects oversized length", func(t *testing.T) {
		buf := NewBuffer(nil)
		require.NoError(t, buf.WriteVarint(MaxUTFLength+1, 32))
		_, err := buf.ReadUTF()
		assert.ErrorIs(t, err, ErrStringTooLong)
	})
}
