package protocol

import "fmt"

// Buffer is an in-memory byte container with a read cursor.
// Writes always append; reads advance the cursor and never move past the end
// of the written data.
//
// Buffer implements RawReader and RawWriter, so every codec function in this
// package works on it exactly as it works on a live connection.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer returns a Buffer whose readable content is data.
// The slice is not copied; the caller must not modify it afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the total number of bytes held, read or not.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

// Bytes returns everything written to the buffer, independent of the cursor.
// The returned slice aliases the buffer's storage.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Write appends p. It never fails and always reports len(p); it exists so a
// Buffer can be handed to anything expecting an io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.data = append(b.data, c)
	return nil
}

// WriteRaw appends p.
func (b *Buffer) WriteRaw(p []byte) error {
	b.data = append(b.data, p...)
	return nil
}

// ReadExactly returns the next n bytes and advances the cursor.
// Fails with ErrOutOfData, leaving the cursor untouched, if fewer than n bytes remain.
// The returned slice aliases the buffer's storage.
func (b *Buffer) ReadExactly(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if n > b.Remaining() {
		return nil, fmt.Errorf("%w (requested %d bytes, %d remaining)", ErrOutOfData, n, b.Remaining())
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out, nil
}

// ReadByte returns the next byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, fmt.Errorf("%w (requested 1 byte, 0 remaining)", ErrOutOfData)
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// WriteVarint appends v as a varint limited to maxBits bits.
func (b *Buffer) WriteVarint(v uint64, maxBits uint) error {
	return WriteVarint(b, v, maxBits)
}

// ReadVarint decodes a varint limited to maxBits bits.
func (b *Buffer) ReadVarint(maxBits uint) (uint64, error) {
	return ReadVarint(b, maxBits)
}

// WriteUTF appends s as a varint byte length followed by its UTF-8 bytes.
func (b *Buffer) WriteUTF(s string) error {
	return WriteUTF(b, s)
}

// ReadUTF decodes a string written by WriteUTF.
func (b *Buffer) ReadUTF() (string, error) {
	return ReadUTF(b)
}
