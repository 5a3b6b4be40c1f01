// Package transport implements the multiplexed stream transport of
// spec.md 4.1-4.3 and 4.6: ReadBuffer, WriteQueue, MultiplexedConnection,
// and Stream. Grounded on goworld's engine/netutil (BufferedReadConnection,
// Packet's scratch/large-buffer split) and engine/proto.GoWorldConnection's
// recv loop, generalized from goworld's single fixed-size Packet framing
// to spec.md's scratch-region/low-water-mark/large-chunk state machine and
// the wire.StreamId varint framing of spec.md 6.
package transport

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/consts"
	"github.com/xiaonanln/worldlink/engine/errs"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// BufferMode identifies which of the two ReadBuffer states (spec.md 4.1
// step 1 vs step 2's large-chunk branch) is active. Exposed for the
// instrumentation hook original_source/libcore/src/network/ASIOReadBuffer.hpp
// fires on transition, which scenario S2 tests against.
type BufferMode int

const (
	// ModeScratch is reading into the fixed scratch region.
	ModeScratch BufferMode = iota
	// ModeLarge is reading directly into an allocated large Chunk.
	ModeLarge
)

// ReadDelegate receives frames and terminal conditions decoded by a
// ReadBuffer. The ReadBuffer never calls arbitrary user code directly
// (spec.md 4.1 "Delivery"); it calls only its owning MultiplexedConnection
// through this interface.
type ReadDelegate interface {
	// DeliverFrame is called once per complete frame, in arrival order.
	// The delegate takes ownership of c (must Release it eventually).
	DeliverFrame(sid wire.StreamId, c *chunk.Chunk)
	// ReportReadError is called at most once, on I/O error or EOF.
	ReportReadError(err error)
	// Alive reports whether the owning connection still exists. When it
	// returns false the ReadBuffer stops pumping and releases itself
	// (spec.md 4.1 "Lifetime").
	Alive() bool
}

// ReadBuffer incrementally decodes a stream of framed chunks from one
// underlying pipe (spec.md 4.1).
type ReadBuffer struct {
	pipe     io.Reader
	delegate ReadDelegate

	scratch  [consts.READ_SCRATCH_SIZE]byte
	writePos int

	large       *chunk.Chunk
	largeFilled uint32 // payload bytes of large received so far
	largeHeader wire.FrameHeader
	mode        BufferMode

	reported bool

	// OnModeChange, if set, is called whenever the buffer switches
	// between scratch and large-chunk mode (SPEC_FULL.md 4, S2).
	OnModeChange func(mode BufferMode)
}

// NewReadBuffer creates a ReadBuffer reading from pipe and delivering
// decoded frames to delegate.
func NewReadBuffer(pipe io.Reader, delegate ReadDelegate) *ReadBuffer {
	return &ReadBuffer{pipe: pipe, delegate: delegate, mode: ModeScratch}
}

// Done reports whether the buffer has stopped pumping, either because it
// reported a terminal condition or its owner is gone.
func (rb *ReadBuffer) Done() bool {
	return rb.reported
}

func (rb *ReadBuffer) setMode(m BufferMode) {
	if rb.mode == m {
		return
	}
	rb.mode = m
	if rb.OnModeChange != nil {
		rb.OnModeChange(m)
	}
}

// Pump performs exactly one physical read from the pipe and processes
// whatever bytes it returns, delivering zero or more complete frames and
// transitioning between scratch and large-chunk mode as spec.md 4.1
// describes. Returns false once the buffer is done (terminal error, EOF,
// or the owner has gone away) and should not be pumped again.
func (rb *ReadBuffer) Pump() bool {
	if rb.reported {
		return false
	}
	if !rb.delegate.Alive() {
		rb.selfDestruct()
		return false
	}

	var target []byte
	if rb.large != nil {
		target = rb.large.Bytes()[rb.largeFilled:]
	} else {
		target = rb.scratch[rb.writePos:]
	}

	if len(target) == 0 {
		// Should not happen given the low-water-mark invariant; treat as
		// an internal bug rather than spin forever.
		rb.fail(errs.New(errs.Internal, errors.New("readbuffer: no space to read into")))
		return false
	}

	n, err := rb.pipe.Read(target)
	if n > 0 {
		rb.consume(n)
	}
	if err != nil {
		rb.fail(classifyReadErr(err))
		return false
	}
	return true
}

func classifyReadErr(err error) error {
	if err == io.EOF {
		return errs.New(errs.Transport, err)
	}
	return errs.New(errs.Transport, err)
}

func (rb *ReadBuffer) consume(n int) {
	if rb.large != nil {
		rb.largeFilled += uint32(n)
		if rb.largeFilled == rb.large.Len() {
			rb.large.Seal()
			hdr := rb.largeHeader
			done := rb.large
			rb.large = nil
			rb.largeFilled = 0
			rb.largeHeader = wire.FrameHeader{}
			rb.setMode(ModeScratch)
			if !rb.delegate.Alive() {
				done.Release()
				rb.selfDestruct()
				return
			}
			rb.delegate.DeliverFrame(hdr.StreamId, done)
		}
		return
	}

	rb.writePos += n
	rb.scanScratch()
}

func (rb *ReadBuffer) scanScratch() {
	scanPos := 0
	for {
		remaining := rb.scratch[scanPos:rb.writePos]
		hdr, ok, err := wire.TryParseFrameHeader(remaining)
		if err != nil {
			rb.fail(errs.New(errs.Protocol, err))
			return
		}
		if !ok {
			// Header itself incomplete; always small, always below the
			// low-water mark, so just fall through to the shift branch.
			break
		}
		if hdr.PayloadLen > consts.MAX_FRAME_PAYLOAD_LEN {
			rb.fail(errs.New(errs.Protocol, errors.Errorf(
				"readbuffer: declared frame payload length %d exceeds maximum %d",
				hdr.PayloadLen, consts.MAX_FRAME_PAYLOAD_LEN)))
			return
		}

		frameTotal := hdr.HeaderBytes + int(hdr.PayloadLen)
		if len(remaining) < frameTotal {
			rb.spillToLargeChunk(hdr, remaining)
			return
		}

		payload := remaining[hdr.HeaderBytes:frameTotal]
		if !rb.delegate.Alive() {
			rb.selfDestruct()
			return
		}
		rb.delegate.DeliverFrame(hdr.StreamId, chunk.NewFromBytes(payload))
		scanPos += frameTotal
	}

	trailing := rb.writePos - scanPos
	if trailing == 0 {
		rb.writePos = 0
		return
	}
	copy(rb.scratch[:trailing], rb.scratch[scanPos:rb.writePos])
	rb.writePos = trailing
}

// spillToLargeChunk handles the case where a frame's header is known but
// its payload has not fully arrived. remaining is the whole unconsumed
// slice starting at the frame's header, not just the payload portion. If
// the pending payload bytes are at or above the low-water mark, switch to
// large-chunk mode (spec.md 4.1 step 2); otherwise shift remaining -- header
// included -- to offset 0, since the header was never saved anywhere else
// and scanScratch must be able to re-parse it on the next Pump. Callers
// must have already rejected hdr.PayloadLen > consts.MAX_FRAME_PAYLOAD_LEN;
// this is the only call site, and scanScratch checks before calling here.
func (rb *ReadBuffer) spillToLargeChunk(hdr wire.FrameHeader, remaining []byte) {
	pendingPayload := remaining[hdr.HeaderBytes:]
	if len(pendingPayload) < consts.READ_LOW_WATER_MARK {
		copy(rb.scratch[:len(remaining)], remaining)
		rb.writePos = len(remaining)
		return
	}

	large := chunk.New(hdr.PayloadLen)
	copy(large.Bytes(), pendingPayload)
	rb.largeFilled = uint32(len(pendingPayload))

	rb.large = large
	rb.largeHeader = hdr
	rb.writePos = 0
	rb.setMode(ModeLarge)
}

func (rb *ReadBuffer) fail(err error) {
	if rb.reported {
		return
	}
	rb.reported = true
	if rb.large != nil {
		rb.large.Release()
		rb.large = nil
	}
	if rb.delegate.Alive() {
		rb.delegate.ReportReadError(err)
	}
}

func (rb *ReadBuffer) selfDestruct() {
	rb.reported = true
	if rb.large != nil {
		rb.large.Release()
		rb.large = nil
	}
}
