package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferReadWrite(t *testing.T) {
	buf := NewBuffer(nil)
	_, _ = buf.Write([]byte("hello"))
	require.NoError(t, buf.WriteByte(' '))
	require.NoError(t, buf.WriteRaw([]byte("world")))

	assert.Equal(t, 11, buf.Len())
	assert.Equal(t, 11, buf.Remaining())

	head, err := buf.ReadExactly(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), head)
	assert.Equal(t, 6, buf.Remaining())

	sp, err := buf.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(' '), sp)

	tail, err := buf.ReadExactly(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), tail)
	assert.Equal(t, 0, buf.Remaining())
	assert.Equal(t, 11, buf.Len(), "reading must not shrink the buffer")
}

func TestBufferOutOfData(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3})

	_, err := buf.ReadExactly(4)
	require.ErrorIs(t, err, ErrOutOfData)
	assert.Equal(t, 3, buf.Remaining(), "failed read must not move the cursor")

	_, err = buf.ReadExactly(3)
	require.NoError(t, err)

	_, err = buf.ReadByte()
	assert.ErrorIs(t, err, ErrOutOfData)

	_, err = buf.ReadExactly(-1)
	assert.Error(t, err)
}

func TestBufferWriteAfterRead(t *testing.T) {
	buf := NewBuffer(nil)
	require.NoError(t, buf.WriteVarint(300, 32))
	v, err := buf.ReadVarint(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)

	require.NoError(t, buf.WriteUTF("later"))
	s, err := buf.ReadUTF()
	require.NoError(t, err)
	assert.Equal(t, "later", s)
	assert.Equal(t, []byte{0xAC, 0x02, 5, 'l', 'a', 't', 'e', 'r'}, buf.Bytes())
}

func TestBufferZeroLengthRead(t *testing.T) {
	buf := NewBuffer(nil)
	out, err := buf.ReadExactly(0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
