// Package wire implements the frame codec of spec.md 3 and 6: a varint
// with a two-bit length tag in its first byte, used both for StreamId and
// for the frame length prefix, plus the frame header (length || stream_id)
// that ReadBuffer/WriteQueue speak.
//
// The corpus's ecosystem varint library (multiformats/go-varint, pulled in
// by dep2p-go-dep2p) encodes LEB128: a continuation bit per byte, no fixed
// total width. spec.md 6 mandates a different, QUIC-style layout (a
// two-bit width selector consuming exactly 1/2/4/8 bytes total) so that a
// reader can tell a frame's header length before it has all of the value's
// bytes. No library in the retrieved pack implements that exact layout, so
// this codec is hand-written against the spec's wire description rather
// than adapted from a dependency; see DESIGN.md.
package wire

import "github.com/pkg/errors"

// ErrValueTooLarge is returned when a value exceeds the widest varint (8
// bytes, 62 value bits).
var ErrValueTooLarge = errors.New("wire: value exceeds maximum varint width")

// ErrShortBuffer is returned when a buffer does not contain a complete varint.
var ErrShortBuffer = errors.New("wire: buffer too short for varint")

const (
	tag1 = 0
	tag2 = 1
	tag4 = 2
	tag8 = 3

	max1 = 1 << 6
	max2 = 1 << 14
	max4 = 1 << 30
	max8 = 1 << 62
)

// SizeofVarint returns the number of bytes AppendVarint would use for v.
func SizeofVarint(v uint64) int {
	switch {
	case v < max1:
		return 1
	case v < max2:
		return 2
	case v < max4:
		return 4
	default:
		return 8
	}
}

// AppendVarint appends the varint encoding of v to dst and returns the
// extended slice. Returns ErrValueTooLarge, without panicking, when v does
// not fit in 62 bits.
func AppendVarint(dst []byte, v uint64) ([]byte, error) {
	var tag byte
	var width int
	switch {
	case v < max1:
		tag, width = tag1, 1
	case v < max2:
		tag, width = tag2, 2
	case v < max4:
		tag, width = tag4, 4
	case v < max8:
		tag, width = tag8, 8
	default:
		return dst, ErrValueTooLarge
	}

	first := (tag << 6) | byte(v&0x3F)
	dst = append(dst, first)
	rest := v >> 6
	for i := 1; i < width; i++ {
		dst = append(dst, byte(rest))
		rest >>= 8
	}
	return dst, nil
}

// ReadVarint decodes a varint from the start of b, returning the value,
// the number of bytes consumed, and an error if b is too short.
func ReadVarint(b []byte) (v uint64, n int, err error) {
	if len(b) < 1 {
		return 0, 0, ErrShortBuffer
	}
	tag := b[0] >> 6
	width := 1 << tag // 1, 2, 4, or 8
	if len(b) < width {
		return 0, 0, ErrShortBuffer
	}

	v = uint64(b[0] & 0x3F)
	var rest uint64
	for i := width - 1; i >= 1; i-- {
		rest = (rest << 8) | uint64(b[i])
	}
	v |= rest << 6
	return v, width, nil
}
