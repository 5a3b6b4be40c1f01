package wire

import "github.com/pkg/errors"

// StreamId identifies a logical stream multiplexed over a connection's
// pipes. 0 is reserved for the connection-level control stream (spec.md 3).
type StreamId uint64

// IsControl reports whether id is the reserved control stream.
func (id StreamId) IsControl() bool {
	return id == 0
}

// ErrProtocolViolation marks a framing error: a frame_length shorter than
// its own stream_id encoding (spec.md 7). An oversized payload length is
// not checked here; ReadBuffer rejects it with its own error.
var ErrProtocolViolation = errors.New("wire: protocol violation in frame header")

// FrameHeader is the decoded (length, stream_id) prefix of one frame.
// PayloadLen is length minus the stream_id's own encoded width, i.e. the
// number of payload bytes that follow the header on the wire.
type FrameHeader struct {
	StreamId    StreamId
	PayloadLen  uint32
	HeaderBytes int // total bytes consumed by length+stream_id on the wire
}

// AppendFrameHeader appends the wire encoding of a frame carrying
// payloadLen bytes on streamID to dst, returning the extended slice.
// length (spec.md 6) counts the stream_id encoding plus the payload.
func AppendFrameHeader(dst []byte, streamID StreamId, payloadLen uint32) ([]byte, error) {
	sidLen := SizeofVarint(uint64(streamID))
	length := uint64(sidLen) + uint64(payloadLen)

	dst, err := AppendVarint(dst, length)
	if err != nil {
		return dst, err
	}
	dst, err = AppendVarint(dst, uint64(streamID))
	if err != nil {
		return dst, err
	}
	return dst, nil
}

// ParseFrameHeader decodes a FrameHeader from the start of b. It returns
// ErrShortBuffer if b does not yet contain the full header (the caller
// should wait for more bytes), and ErrProtocolViolation if the header is
// self-inconsistent (length smaller than the stream_id's own width).
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	length, lengthBytes, err := ReadVarint(b)
	if err != nil {
		return FrameHeader{}, err
	}
	if len(b) < lengthBytes {
		return FrameHeader{}, ErrShortBuffer
	}

	streamID, sidBytes, err := ReadVarint(b[lengthBytes:])
	if err != nil {
		return FrameHeader{}, err
	}

	if length < uint64(sidBytes) {
		return FrameHeader{}, ErrProtocolViolation
	}

	return FrameHeader{
		StreamId:    StreamId(streamID),
		PayloadLen:  uint32(length - uint64(sidBytes)),
		HeaderBytes: lengthBytes + sidBytes,
	}, nil
}

// TryParseFrameHeader is like ParseFrameHeader but treats "not enough
// bytes yet" (either varint incomplete) as ok=false rather than an error,
// which is the common case while a ReadBuffer is still accumulating a
// frame (spec.md 4.1).
func TryParseFrameHeader(b []byte) (hdr FrameHeader, ok bool, err error) {
	hdr, err = ParseFrameHeader(b)
	if err == ErrShortBuffer {
		return FrameHeader{}, false, nil
	}
	if err != nil {
		return FrameHeader{}, false, err
	}
	return hdr, true, nil
}
