package transport

import (
	"testing"

	"github.com/xiaonanln/worldlink/engine/consts"
	"github.com/xiaonanln/worldlink/engine/wire"
)

func encodeFrame(t *testing.T, sid wire.StreamId, payload []byte) []byte {
	t.Helper()
	hdr, err := wire.AppendFrameHeader(nil, sid, uint32(len(payload)))
	if err != nil {
		t.Fatalf("AppendFrameHeader: %v", err)
	}
	return append(hdr, payload...)
}

// S1: three frames of sizes 10/20/30 on stream 7 arrive in one segment.
func TestS1CoalescedSmallFrames(t *testing.T) {
	var wire1 []byte
	sizes := []int{10, 20, 30}
	for _, n := range sizes {
		wire1 = append(wire1, encodeFrame(t, 7, make([]byte, n))...)
	}

	delegate := newRecordingDelegate()
	rb := NewReadBuffer(newSegmentedReader(wire1), delegate)

	for rb.Pump() {
	}

	if len(delegate.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(delegate.frames))
	}
	for i, n := range sizes {
		if delegate.frames[i].sid != 7 {
			t.Fatalf("frame %d: expected stream 7, got %d", i, delegate.frames[i].sid)
		}
		if len(delegate.frames[i].payload) != n {
			t.Fatalf("frame %d: expected %d bytes, got %d", i, n, len(delegate.frames[i].payload))
		}
	}
	if rb.writePos != 0 {
		t.Fatalf("expected 0 trailing bytes in scratch, got %d", rb.writePos)
	}
}

// S2: one 4096-byte payload frame on stream 3 (4099 bytes with its
// header) arrives across three segments of 512, 2000 and 1587 bytes. Exactly one 4096-byte Chunk should be
// delivered, and the buffer should visibly enter and leave large-chunk mode.
func TestS2LargeFrameSplitting(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	full := encodeFrame(t, 3, payload)

	seg1 := full[:512]
	seg2 := full[512 : 512+2000]
	seg3 := full[512+2000:]
	if len(seg3) != len(full)-2512 {
		t.Fatalf("test bug: segment arithmetic")
	}

	delegate := newRecordingDelegate()
	rb := NewReadBuffer(newSegmentedReader(seg1, seg2, seg3), delegate)

	var modes []BufferMode
	rb.OnModeChange = func(m BufferMode) { modes = append(modes, m) }

	for rb.Pump() {
	}

	if len(delegate.frames) != 1 {
		t.Fatalf("expected exactly 1 frame, got %d", len(delegate.frames))
	}
	if delegate.frames[0].sid != 3 {
		t.Fatalf("expected stream 3, got %d", delegate.frames[0].sid)
	}
	if len(delegate.frames[0].payload) != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", len(delegate.frames[0].payload))
	}
	for i, b := range delegate.frames[0].payload {
		if b != byte(i) {
			t.Fatalf("payload corrupted at offset %d", i)
		}
	}

	if len(modes) < 2 || modes[0] != ModeLarge || modes[len(modes)-1] != ModeScratch {
		t.Fatalf("expected a transition into and out of large mode, got %v", modes)
	}
}

func TestReadBufferReportsEOFOnce(t *testing.T) {
	delegate := newRecordingDelegate()
	rb := NewReadBuffer(newSegmentedReader(), delegate)

	for rb.Pump() {
	}
	if rb.Pump() {
		t.Fatalf("Pump should return false once done")
	}
	if len(delegate.errs) != 1 {
		t.Fatalf("expected exactly one reported error, got %d", len(delegate.errs))
	}
}

func TestReadBufferSelfDestructsWhenOwnerGone(t *testing.T) {
	delegate := newRecordingDelegate()
	frame := encodeFrame(t, 1, []byte("hi"))
	rb := NewReadBuffer(newSegmentedReader(frame), delegate)

	delegate.alive = false
	if rb.Pump() {
		t.Fatalf("Pump should stop once owner is gone")
	}
	if len(delegate.frames) != 0 {
		t.Fatalf("no frame should be delivered to a dead owner")
	}
	if !rb.Done() {
		t.Fatalf("buffer should mark itself done")
	}
}

// An oversized declared payload length must fail the connection cleanly,
// not panic while allocating an undersized large-chunk buffer for it.
func TestOversizedPayloadLenReportedNotPanicked(t *testing.T) {
	hdr, err := wire.AppendFrameHeader(nil, 1, consts.MAX_FRAME_PAYLOAD_LEN+1)
	if err != nil {
		t.Fatalf("AppendFrameHeader: %v", err)
	}

	delegate := newRecordingDelegate()
	rb := NewReadBuffer(newSegmentedReader(hdr), delegate)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Pump panicked on oversized payload length: %v", r)
		}
	}()

	for rb.Pump() {
	}
	if len(delegate.errs) != 1 {
		t.Fatalf("expected exactly one reported error, got %d", len(delegate.errs))
	}
	if len(delegate.frames) != 0 {
		t.Fatalf("expected no delivered frames, got %d", len(delegate.frames))
	}
	if !rb.Done() {
		t.Fatalf("buffer should mark itself done after the protocol violation")
	}
}

func TestProtocolViolationReported(t *testing.T) {
	// A frame_length smaller than its own stream_id encoding is invalid.
	bad := []byte{0x00, 0x00} // length=0 (1-byte tag), stream_id encoding needs >=1 byte
	delegate := newRecordingDelegate()
	rb := NewReadBuffer(newSegmentedReader(bad), delegate)

	for rb.Pump() {
	}
	if len(delegate.errs) != 1 {
		t.Fatalf("expected a protocol error reported, got %d errors", len(delegate.errs))
	}
}
