package wire

import (
	"testing"
)

func TestVarintRoundTripAllWidths(t *testing.T) {
	cases := []uint64{
		0, 1, 63, 64, 16383, 16384,
		1<<30 - 1, 1 << 30, 1<<62 - 1,
	}
	for _, v := range cases {
		buf, err := AppendVarint(nil, v)
		if err != nil {
			t.Fatalf("AppendVarint(%d): %v", v, err)
		}
		got, n, err := ReadVarint(buf)
		if err != nil {
			t.Fatalf("ReadVarint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: got %d, want %d", got, v)
		}
		if n != len(buf) {
			t.Fatalf("consumed %d bytes, buffer is %d", n, len(buf))
		}
	}
}

func TestVarintTooLarge(t *testing.T) {
	_, err := AppendVarint(nil, 1<<62)
	if err != ErrValueTooLarge {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestReadVarintShortBuffer(t *testing.T) {
	buf, _ := AppendVarint(nil, 1<<20) // 4-byte encoding
	_, _, err := ReadVarint(buf[:2])
	if err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	for _, sid := range []StreamId{0, 1, 7, 300, 1 << 20, 1 << 40} {
		for _, plen := range []uint32{0, 10, 4096} {
			hdr, err := AppendFrameHeader(nil, sid, plen)
			if err != nil {
				t.Fatalf("AppendFrameHeader: %v", err)
			}
			parsed, err := ParseFrameHeader(hdr)
			if err != nil {
				t.Fatalf("ParseFrameHeader: %v", err)
			}
			if parsed.StreamId != sid || parsed.PayloadLen != plen {
				t.Fatalf("got (%d,%d), want (%d,%d)", parsed.StreamId, parsed.PayloadLen, sid, plen)
			}
			if parsed.HeaderBytes != len(hdr) {
				t.Fatalf("HeaderBytes %d != actual %d", parsed.HeaderBytes, len(hdr))
			}
		}
	}
}

func TestTryParseFrameHeaderIncomplete(t *testing.T) {
	hdr, _ := AppendFrameHeader(nil, 12345, 4096)
	_, ok, err := TryParseFrameHeader(hdr[:1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false on truncated header")
	}
}

func TestControlStreamId(t *testing.T) {
	if !StreamId(0).IsControl() {
		t.Fatalf("StreamId 0 should be control")
	}
	if StreamId(1).IsControl() {
		t.Fatalf("StreamId 1 should not be control")
	}
}
