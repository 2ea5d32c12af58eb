package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// RawReader reads raw bytes from a source.
// ReadExactly blocks until n bytes are available and returns exactly n of them, or fails.
// Live sources report closures and timeouts with ErrNoData, *PartialDataError and ErrTimeout.
type RawReader interface {
	ReadExactly(n int) ([]byte, error)
}

// RawWriter writes raw bytes to a sink.
type RawWriter interface {
	WriteRaw(p []byte) error
}

// RawReadWriter groups the two stream roles.
type RawReadWriter interface {
	RawReader
	RawWriter
}

func checkBits(maxBits uint) error {
	if maxBits == 0 || maxBits > 64 {
		return fmt.Errorf("%w: %d", ErrInvalidBitWidth, maxBits)
	}
	return nil
}

// AppendVarint appends v to dst as 7-bit groups, least significant first, with the
// high bit set on every byte except the last.
// Fails with ErrVarintOverflow if v does not fit into maxBits bits.
func AppendVarint(dst []byte, v uint64, maxBits uint) ([]byte, error) {
	if err := checkBits(maxBits); err != nil {
		return dst, err
	}
	if maxBits < 64 && v>>maxBits != 0 {
		return dst, fmt.Errorf("%w: %d does not fit into %d bits", ErrVarintOverflow, v, maxBits)
	}
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v)), nil
}

// WriteVarint encodes v and hands the complete encoding to w in a single write.
func WriteVarint(w RawWriter, v uint64, maxBits uint) error {
	var scratch [MaxVarintBytes]byte
	enc, err := AppendVarint(scratch[:0], v, maxBits)
	if err != nil {
		return err
	}
	return w.WriteRaw(enc)
}

// ReadVarint decodes a varint of at most maxBits bits, issuing one single-byte read per group.
//
// Fails with ErrVarintTooLong if the terminating byte is not seen within the groups the budget
// allows, and with ErrVarintOverflow if the last group carries bits beyond the budget.
// If the source closes after some but not all groups arrived, the failure is a *PartialDataError
// carrying the bytes consumed so far; ErrNoData is only returned when nothing arrived.
func ReadVarint(r RawReader, maxBits uint) (uint64, error) {
	v, _, err := readVarint(r, maxBits)
	return v, err
}

// readVarint is ReadVarint that also returns the encoded bytes it consumed.
func readVarint(r RawReader, maxBits uint) (uint64, []byte, error) {
	if err := checkBits(maxBits); err != nil {
		return 0, nil, err
	}
	maxGroups := int((maxBits + 6) / 7)

	var (
		value    uint64
		consumed = make([]byte, 0, maxGroups)
	)
	for i := 0; i < maxGroups; i++ {
		p, err := r.ReadExactly(1)
		if err != nil {
			if len(consumed) > 0 && errors.Is(err, ErrNoData) {
				return 0, consumed, &PartialDataError{Partial: consumed, Want: len(consumed) + 1}
			}
			return 0, consumed, err
		}
		b := p[0]
		consumed = append(consumed, b)

		group := uint64(b & 0x7F)
		shift := uint(7 * i)
		if left := maxBits - shift; left < 7 && group>>left != 0 {
			return 0, consumed, fmt.Errorf("%w: value does not fit into %d bits", ErrVarintOverflow, maxBits)
		}
		value |= group << shift
		if b&0x80 == 0 {
			return value, consumed, nil
		}
	}
	return 0, consumed, fmt.Errorf("%w: no terminating byte within %d bytes (%d-bit budget)", ErrVarintTooLong, maxGroups, maxBits)
}

// AppendUTF appends s as a 32-bit varint byte length followed by its bytes.
// Strings that are not valid UTF-8 are rejected rather than replaced.
func AppendUTF(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return dst, ErrInvalidUTF8
	}
	if len(s) > MaxUTFLength {
		return dst, fmt.Errorf("%w: %d bytes (max %d)", ErrStringTooLong, len(s), MaxUTFLength)
	}
	dst, err := AppendVarint(dst, uint64(len(s)), VarintBits)
	if err != nil {
		return dst, err
	}
	return append(dst, s...), nil
}

// WriteUTF encodes s and hands the complete encoding to w in a single write.
func WriteUTF(w RawWriter, s string) error {
	enc, err := AppendUTF(make([]byte, 0, len(s)+5), s)
	if err != nil {
		return err
	}
	return w.WriteRaw(enc)
}

// ReadUTF reads a varint byte length and then that many bytes, which must be valid UTF-8.
// A source closing after the length arrived is a *PartialDataError whose Partial starts with
// the encoded length.
func ReadUTF(r RawReader) (string, error) {
	n, prefix, err := readVarint(r, VarintBits)
	if err != nil {
		return "", err
	}
	if n > MaxUTFLength {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrStringTooLong, n, MaxUTFLength)
	}
	data, err := r.ReadExactly(int(n))
	if err != nil {
		want := len(prefix) + int(n)
		var pde *PartialDataError
		switch {
		case errors.As(err, &pde):
			return "", &PartialDataError{Partial: append(prefix, pde.Partial...), Want: want, Err: pde.Err}
		case errors.Is(err, ErrNoData):
			return "", &PartialDataError{Partial: prefix, Want: want}
		}
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}
