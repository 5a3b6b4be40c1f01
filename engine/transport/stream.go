package transport

import (
	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/errs"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// ErrDisconnected is delivered to a Stream's Receiver, with a nil Chunk,
// exactly once when the owning connection fails fatally (spec.md 4.3
// "Errors", scenario S6).
var ErrDisconnected = errs.New(errs.Transport, nil)

// Receiver is a Stream's delivery target. c is nil exactly when err is
// non-nil, signalling the stream's terminal disconnect (spec.md 3
// "Stream... a receive callback").
type Receiver func(c *chunk.Chunk, err error)

// Stream is the per-logical-stream façade of spec.md 4.6: a thin wrapper
// over its owning MultiplexedConnection exposing send/close/half-close.
// Grounded on goworld's engine/proto.GoWorldConnection, which plays the
// same role of "one façade per logical connection" but without
// multiplexing; worldlink narrows GoWorldConnection down to exactly the
// three operations spec.md 4.6 names.
type Stream struct {
	id   wire.StreamId
	conn *MultiplexedConnection

	receiver Receiver

	localClosed  bool
	remoteClosed bool

	// pendingFrames counts frames enqueued but not yet fully flushed to a
	// pipe. A stream is only destroyed once both closed flags are set and
	// this reaches zero (spec.md 3 "Stream").
	pendingFrames int
}

// Id returns the stream's StreamId.
func (s *Stream) Id() wire.StreamId {
	return s.id
}

// SetReceiver installs the delivery target. May be called at any time;
// goworld's GoWorldConnection allows the same "open then wire the
// callback" sequencing spec.md 4.6 requires.
func (s *Stream) SetReceiver(r Receiver) {
	s.receiver = r
}

// Send forwards chunk c to the connection for framing and enqueuing
// (spec.md 4.6). Returns errs.ErrStreamClosed if the local side already
// closed, or whatever the connection's sendOnStream returns (Ok as nil,
// errs.ErrWouldBlock, or errs.ErrConnectionClosed).
func (s *Stream) Send(c *chunk.Chunk) error {
	if s.localClosed {
		c.Release()
		return errs.ErrStreamClosed
	}
	return s.conn.sendOnStream(s, c)
}

// Close sends a control frame announcing the half-close and flips
// local_closed. Further Send calls return errs.ErrStreamClosed.
func (s *Stream) Close() error {
	if s.localClosed {
		return nil
	}
	s.localClosed = true
	return s.conn.closeStream(s)
}

// LocalClosed reports whether Close has been called locally.
func (s *Stream) LocalClosed() bool {
	return s.localClosed
}

// RemoteClosed reports whether the peer has half-closed its side.
func (s *Stream) RemoteClosed() bool {
	return s.remoteClosed
}

func (s *Stream) destroyed() bool {
	return s.localClosed && s.remoteClosed && s.pendingFrames == 0
}

func (s *Stream) deliver(c *chunk.Chunk) {
	if s.receiver != nil {
		s.receiver(c, nil)
	} else {
		c.Release()
	}
}

func (s *Stream) deliverDisconnect() {
	if s.receiver != nil {
		s.receiver(nil, ErrDisconnected)
	}
}
