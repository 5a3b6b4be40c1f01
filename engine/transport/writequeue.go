package transport

import (
	"io"

	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/errs"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// outboundFrame is one queued (header, payload) pair. Grounded on
// goworld's engine/netutil.SendBuffer, generalized from a single flat
// send buffer to a queue of independently-owned Chunks so a frame can
// outlive the buffer it was copied from and partial writes can resume
// mid-frame without re-copying.
type outboundFrame struct {
	streamID   wire.StreamId
	header     []byte
	headerOff  int
	payload    *chunk.Chunk
	payloadOff uint32
}

func (f *outboundFrame) remaining() int64 {
	return int64(len(f.header)-f.headerOff) + int64(f.payload.Len()-f.payloadOff)
}

func (f *outboundFrame) done() bool {
	return f.headerOff >= len(f.header) && f.payloadOff >= f.payload.Len()
}

func (f *outboundFrame) release() {
	f.payload.Release()
}

// WriteQueue is the per-pipe outbound queue of spec.md 4.2: strictly FIFO,
// atomic per-frame flushing, partial-write resumption, and a high-water
// mark on total queued bytes.
type WriteQueue struct {
	frames      []*outboundFrame
	queuedBytes int64
	highWater   int64

	// OnFrameFlushed, if set, is called once a queued frame for streamID
	// has been fully written, so the owning Stream can track whether any
	// outbound frames remain queued for it (spec.md 3 "Stream").
	OnFrameFlushed func(streamID wire.StreamId)
}

// NewWriteQueue creates a WriteQueue with the given high-water mark on
// total queued bytes.
func NewWriteQueue(highWater int64) *WriteQueue {
	return &WriteQueue{highWater: highWater}
}

// QueuedBytes returns the total bytes remaining to be flushed.
func (wq *WriteQueue) QueuedBytes() int64 {
	return wq.queuedBytes
}

// Enqueue frames c for streamID and appends it to the queue. c is retained
// by the queue; the caller's own reference is unaffected (call Release on
// it if the caller no longer needs it). Returns errs.ErrWouldBlock if the
// high-water mark would be exceeded.
func (wq *WriteQueue) Enqueue(streamID wire.StreamId, c *chunk.Chunk) error {
	header, err := wire.AppendFrameHeader(nil, streamID, c.Len())
	if err != nil {
		return errs.New(errs.Protocol, err)
	}

	frameBytes := int64(len(header)) + int64(c.Len())
	if wq.queuedBytes+frameBytes > wq.highWater {
		return errs.ErrWouldBlock
	}

	wq.frames = append(wq.frames, &outboundFrame{streamID: streamID, header: header, payload: c.Retain()})
	wq.queuedBytes += frameBytes
	return nil
}

// Flush writes as much of the front of the queue as w accepts without
// blocking indefinitely: a single call may drain the whole queue, or stop
// mid-frame if w.Write reports a short write with no error (the
// non-blocking-socket case), in which case the next Flush resumes from the
// retained offset. Returns drained=true once the queue is empty.
func (wq *WriteQueue) Flush(w io.Writer) (drained bool, err error) {
	for len(wq.frames) > 0 {
		f := wq.frames[0]

		if f.headerOff < len(f.header) {
			n, werr := w.Write(f.header[f.headerOff:])
			wq.queuedBytes -= int64(n)
			f.headerOff += n
			if werr != nil {
				return false, errs.New(errs.Transport, werr)
			}
			if f.headerOff < len(f.header) {
				return false, nil // pipe accepted a partial header write
			}
		}

		for f.payloadOff < f.payload.Len() {
			n, werr := w.Write(f.payload.Bytes()[f.payloadOff:])
			wq.queuedBytes -= int64(n)
			f.payloadOff += uint32(n)
			if werr != nil {
				return false, errs.New(errs.Transport, werr)
			}
			if n == 0 {
				return false, nil // pipe would block; resume here next time
			}
		}

		wq.frames = wq.frames[1:]
		f.release()
		if wq.OnFrameFlushed != nil {
			wq.OnFrameFlushed(f.streamID)
		}
	}
	return true, nil
}

// Discard releases every queued frame's chunk without writing it. Used
// when a connection fails fatally and its pipes' queues are torn down
// (spec.md 4.3 "Errors").
func (wq *WriteQueue) Discard() {
	for _, f := range wq.frames {
		f.release()
	}
	wq.frames = nil
	wq.queuedBytes = 0
}

// Empty reports whether the queue has no pending frames.
func (wq *WriteQueue) Empty() bool {
	return len(wq.frames) == 0
}
