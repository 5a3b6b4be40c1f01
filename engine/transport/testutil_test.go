package transport

import (
	"errors"
	"io"

	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// segmentedReader delivers byte slices from a fixed schedule, one Read
// call per segment, then returns io.EOF. Models "peer sends N bytes in M
// TCP segments" scenarios (S1, S2) deterministically.
type segmentedReader struct {
	segments [][]byte
	idx      int
	eofAfter bool
}

func newSegmentedReader(segments ...[]byte) *segmentedReader {
	return &segmentedReader{segments: segments}
}

func (r *segmentedReader) Read(p []byte) (int, error) {
	if r.idx >= len(r.segments) {
		return 0, io.EOF
	}
	seg := r.segments[r.idx]
	r.idx++
	n := copy(p, seg)
	if n < len(seg) {
		panic("segmentedReader: target buffer smaller than segment; test bug")
	}
	return n, nil
}

// recordingDelegate captures every frame and error a ReadBuffer delivers.
type recordingDelegate struct {
	alive  bool
	frames []recordedFrame
	errs   []error
}

type recordedFrame struct {
	sid     uint64
	payload []byte
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{alive: true}
}

func (d *recordingDelegate) Alive() bool { return d.alive }

func (d *recordingDelegate) ReportReadError(err error) {
	d.errs = append(d.errs, err)
}

func (d *recordingDelegate) DeliverFrame(sid wire.StreamId, c *chunk.Chunk) {
	d.frames = append(d.frames, recordedFrame{sid: uint64(sid), payload: append([]byte(nil), c.Bytes()...)})
	c.Release()
}

// growingWriter fails deliberately once a byte budget is exhausted, used
// to simulate a pipe that "would block".
type growingWriter struct {
	buf     []byte
	budget  int
	written int
}

func (w *growingWriter) Write(p []byte) (int, error) {
	room := w.budget - w.written
	if room <= 0 {
		return 0, nil
	}
	n := len(p)
	if n > room {
		n = room
	}
	w.buf = append(w.buf, p[:n]...)
	w.written += n
	return n, nil
}

var errBoom = errors.New("boom")

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errBoom
}
