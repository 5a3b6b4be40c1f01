package transport

import (
	"bytes"
	"testing"

	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/wire"
)

func TestWriteQueueFlushOrderAndAtomicFraming(t *testing.T) {
	wq := NewWriteQueue(1 << 20)
	if err := wq.Enqueue(1, chunk.NewFromBytes([]byte("first"))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := wq.Enqueue(2, chunk.NewFromBytes([]byte("second"))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var out bytes.Buffer
	drained, err := wq.Flush(&out)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !drained {
		t.Fatalf("expected queue fully drained")
	}

	// Decode the two frames back out in order.
	buf := out.Bytes()
	hdr1, err := wire.ParseFrameHeader(buf)
	if err != nil {
		t.Fatalf("parse hdr1: %v", err)
	}
	p1 := buf[hdr1.HeaderBytes : hdr1.HeaderBytes+int(hdr1.PayloadLen)]
	if hdr1.StreamId != 1 || string(p1) != "first" {
		t.Fatalf("frame 1 mismatch: sid=%d payload=%q", hdr1.StreamId, p1)
	}

	rest := buf[hdr1.HeaderBytes+int(hdr1.PayloadLen):]
	hdr2, err := wire.ParseFrameHeader(rest)
	if err != nil {
		t.Fatalf("parse hdr2: %v", err)
	}
	p2 := rest[hdr2.HeaderBytes : hdr2.HeaderBytes+int(hdr2.PayloadLen)]
	if hdr2.StreamId != 2 || string(p2) != "second" {
		t.Fatalf("frame 2 mismatch: sid=%d payload=%q", hdr2.StreamId, p2)
	}
}

func TestWriteQueuePartialWriteResumes(t *testing.T) {
	wq := NewWriteQueue(1 << 20)
	payload := bytes.Repeat([]byte("x"), 100)
	if err := wq.Enqueue(5, chunk.NewFromBytes(payload)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := &growingWriter{budget: 10}
	drained, err := wq.Flush(w)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if drained {
		t.Fatalf("expected partial flush, not drained")
	}
	if wq.Empty() {
		t.Fatalf("frame should still be queued")
	}

	w.budget = 1000
	drained, err = wq.Flush(w)
	if err != nil {
		t.Fatalf("flush resume: %v", err)
	}
	if !drained {
		t.Fatalf("expected fully drained after resume")
	}

	hdr, err := wire.ParseFrameHeader(w.buf)
	if err != nil {
		t.Fatalf("parse resumed frame: %v", err)
	}
	got := w.buf[hdr.HeaderBytes : hdr.HeaderBytes+int(hdr.PayloadLen)]
	if string(got) != string(payload) {
		t.Fatalf("payload corrupted across partial write resumption")
	}
}

func TestWriteQueueFatalWriteError(t *testing.T) {
	wq := NewWriteQueue(1 << 20)
	_ = wq.Enqueue(1, chunk.NewFromBytes([]byte("x")))

	_, err := wq.Flush(failingWriter{})
	if err == nil {
		t.Fatalf("expected an error from a failing writer")
	}
}

// S5: enqueue frames until the high-water mark is exceeded; the frame that
// would push the queue over the mark is rejected with WouldBlock. After the
// pipe drains the queue, sending again succeeds.
func TestS5Backpressure(t *testing.T) {
	frame, _ := wire.AppendFrameHeader(nil, 1, 1)
	frameSize := int64(len(frame)) + 1 // header + 1 byte payload

	highWater := frameSize * 3
	wq := NewWriteQueue(highWater)

	for i := 0; i < 3; i++ {
		if err := wq.Enqueue(1, chunk.NewFromBytes([]byte{byte(i)})); err != nil {
			t.Fatalf("enqueue %d should succeed, got %v", i, err)
		}
	}

	if err := wq.Enqueue(1, chunk.NewFromBytes([]byte{9})); err == nil {
		t.Fatalf("4th enqueue should return WouldBlock")
	}

	var out bytes.Buffer
	drained, err := wq.Flush(&out)
	if err != nil || !drained {
		t.Fatalf("flush should fully drain: drained=%v err=%v", drained, err)
	}

	if err := wq.Enqueue(1, chunk.NewFromBytes([]byte{9})); err != nil {
		t.Fatalf("enqueue after drain should succeed, got %v", err)
	}
}
