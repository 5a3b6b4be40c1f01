package transport

import (
	"io"
	"sync/atomic"

	"github.com/xiaonanln/worldlink/engine/chunk"
	"github.com/xiaonanln/worldlink/engine/consts"
	"github.com/xiaonanln/worldlink/engine/errs"
	"github.com/xiaonanln/worldlink/engine/gwlog"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// ConnState is one of the four states of spec.md 4.3.
type ConnState int32

const (
	// StateConnecting is the initial state before any pipe has completed its handshake.
	StateConnecting ConnState = iota
	// StateEstablished means the connection is open for new streams.
	StateEstablished
	// StateDraining means no new streams; existing streams may finish.
	StateDraining
	// StateClosed is terminal; no frame is ever delivered again.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateEstablished:
		return "Established"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Pipe is one underlying reliable byte-pipe in the connection's pool
// (spec.md 3 "pipes"). Read and Write may be backed by the same net.Conn
// or by separate half-duplex ends; the core only requires io.Reader and
// io.Writer.
type Pipe struct {
	Reader io.Reader
	Writer io.Writer
}

type pipeState struct {
	pipe Pipe
	rb   *ReadBuffer
	wq   *WriteQueue
}

// NewStreamHandler is invoked synchronously when an inbound frame names a
// StreamId not already in the stream table (spec.md 4.3 "Inbound"). It
// must accept or reject within this call: returning ok=false drops the
// frame and no Stream is created.
type NewStreamHandler func(sid wire.StreamId) (receiver Receiver, ok bool)

// MultiplexedConnection is a pool of pipes to a single remote peer, a
// stream table, and framing/demuxing logic (spec.md 4.3). Grounded on
// goworld's engine/dispatchercluster (a fixed pool of connections to
// dispatcher processes, selected round-robin/by-hash for outbound
// traffic) crossed with engine/proto.GoWorldConnection's single-pipe
// send/recv loop.
type MultiplexedConnection struct {
	pipes   []*pipeState
	streams map[wire.StreamId]*Stream

	nextLocalStreamID uint64
	rrIndex           int

	state int32 // ConnState, atomic

	newStreamHandler NewStreamHandler
	writeHighWater   int64

	alive bool // false once the connection has been fully torn down
}

// NewMultiplexedConnection constructs a connection over the given pipes.
// The connection starts in StateConnecting; call Start to begin pumping
// and transition to StateEstablished.
func NewMultiplexedConnection(pipes []Pipe, newStreamHandler NewStreamHandler) *MultiplexedConnection {
	if len(pipes) == 0 {
		gwlog.Panicf("transport: MultiplexedConnection requires at least one pipe")
	}

	c := &MultiplexedConnection{
		streams:           map[wire.StreamId]*Stream{},
		nextLocalStreamID: 1,
		newStreamHandler:  newStreamHandler,
		writeHighWater:    consts.WRITE_QUEUE_HIGH_WATER_MARK,
		alive:             true,
	}
	atomic.StoreInt32(&c.state, int32(StateConnecting))

	for _, p := range pipes {
		ps := &pipeState{pipe: p, wq: NewWriteQueue(c.writeHighWater)}
		ps.rb = NewReadBuffer(p.Reader, connReadDelegate{c: c, ps: ps})
		ps.wq.OnFrameFlushed = func(sid wire.StreamId) {
			if s, ok := c.streams[sid]; ok {
				s.pendingFrames--
				c.maybeDestroy(s)
			}
		}
		c.pipes = append(c.pipes, ps)
	}
	return c
}

// State returns the current connection state.
func (c *MultiplexedConnection) State() ConnState {
	return ConnState(atomic.LoadInt32(&c.state))
}

func (c *MultiplexedConnection) setState(s ConnState) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Start transitions Connecting -> Established (spec.md 4.3: "on successful
// handshake on the first pipe"; the core does not implement a specific
// handshake protocol, so success is synchronous with Start).
func (c *MultiplexedConnection) Start() {
	if c.State() == StateConnecting {
		c.setState(StateEstablished)
	}
}

// Pump drives one round of I/O: for each pipe, a Flush attempt on its
// WriteQueue, then one Pump() on its ReadBuffer. Call repeatedly from the
// loop thread (spec.md 5).
func (c *MultiplexedConnection) Pump() {
	if c.State() == StateClosed {
		return
	}
	for _, ps := range c.pipes {
		if _, err := ps.wq.Flush(ps.pipe.Writer); err != nil {
			c.fail(err)
			return
		}
		ps.rb.Pump()
		if c.State() == StateClosed {
			return
		}
	}
}

// OpenStream allocates a new outbound StreamId and registers a Stream for
// it locally. The peer learns about the stream implicitly from the first
// frame carrying its id (spec.md 4.3 does not require an explicit OPEN
// round trip before data flows; OPEN/CLOSE control frames exist for
// explicit lifecycle signalling when a host wants it).
func (c *MultiplexedConnection) OpenStream(receiver Receiver) (*Stream, error) {
	if c.State() != StateEstablished {
		return nil, errs.New(errs.StreamClosed, nil)
	}
	sid := wire.StreamId(c.nextLocalStreamID)
	c.nextLocalStreamID++

	s := &Stream{id: sid, conn: c, receiver: receiver}
	c.streams[sid] = s
	return s, nil
}

// Close transitions Established -> Draining: no new streams are accepted,
// existing streams may still send until they close themselves.
func (c *MultiplexedConnection) Close() {
	if c.State() == StateEstablished {
		c.setState(StateDraining)
	}
}

func (c *MultiplexedConnection) sendOnStream(s *Stream, ch *chunk.Chunk) error {
	state := c.State()
	if state == StateClosed {
		ch.Release()
		return errs.ErrConnectionClosed
	}

	ps := c.pickPipe()
	if err := ps.wq.Enqueue(s.id, ch); err != nil {
		return err
	}
	s.pendingFrames++
	return nil
}

func (c *MultiplexedConnection) closeStream(s *Stream) error {
	payload, err := EncodeControlFrame(ControlFrame{Op: OpClose, StreamId: s.id})
	if err != nil {
		return err
	}
	ps := c.pickPipe()
	if err := ps.wq.Enqueue(consts.CONTROL_STREAM_ID, chunk.NewFromBytes(payload)); err != nil {
		return err
	}
	c.maybeDestroy(s)
	return nil
}

// pickPipe implements spec.md 4.3's outbound policy: round-robin across
// pipes that are not saturated (queued bytes below the high-water mark).
func (c *MultiplexedConnection) pickPipe() *pipeState {
	n := len(c.pipes)
	for i := 0; i < n; i++ {
		idx := (c.rrIndex + i) % n
		ps := c.pipes[idx]
		if ps.wq.QueuedBytes() < c.writeHighWater {
			c.rrIndex = (idx + 1) % n
			return ps
		}
	}
	// All saturated: still return one so Enqueue's own high-water check
	// produces the WouldBlock error the caller expects.
	ps := c.pipes[c.rrIndex]
	c.rrIndex = (c.rrIndex + 1) % n
	return ps
}

func (c *MultiplexedConnection) maybeDestroy(s *Stream) {
	if s.destroyed() {
		delete(c.streams, s.id)
	}
}

// connReadDelegate adapts one pipe's ReadBuffer callbacks onto the
// connection (spec.md 4.1 "the ReadBuffer never calls user code
// directly").
type connReadDelegate struct {
	c  *MultiplexedConnection
	ps *pipeState
}

func (d connReadDelegate) Alive() bool {
	return d.c.alive && d.c.State() != StateClosed
}

func (d connReadDelegate) ReportReadError(err error) {
	d.c.fail(err)
}

func (d connReadDelegate) DeliverFrame(sid wire.StreamId, c *chunk.Chunk) {
	d.c.handleInbound(sid, c)
}

func (c *MultiplexedConnection) handleInbound(sid wire.StreamId, ch *chunk.Chunk) {
	if c.State() == StateClosed {
		ch.Release()
		return
	}

	if sid.IsControl() {
		c.handleControl(ch)
		return
	}

	s, ok := c.streams[sid]
	if !ok {
		receiver, accept := (Receiver)(nil), false
		if c.newStreamHandler != nil {
			receiver, accept = c.newStreamHandler(sid)
		}
		if !accept {
			ch.Release()
			return
		}
		s = &Stream{id: sid, conn: c, receiver: receiver}
		c.streams[sid] = s
	}
	s.deliver(ch)
}

func (c *MultiplexedConnection) handleControl(ch *chunk.Chunk) {
	defer ch.Release()

	frame, err := DecodeControlFrame(ch.Bytes())
	if err != nil {
		c.fail(err)
		return
	}

	switch frame.Op {
	case OpClose:
		if s, ok := c.streams[frame.StreamId]; ok {
			s.remoteClosed = true
			c.maybeDestroy(s)
		}
	case OpPing:
		payload, err := EncodeControlFrame(ControlFrame{Op: OpPong, Nonce: frame.Nonce})
		if err == nil {
			ps := c.pickPipe()
			_ = ps.wq.Enqueue(consts.CONTROL_STREAM_ID, chunk.NewFromBytes(payload))
		}
	case OpPong:
		// No default keepalive bookkeeping in the core; a host may
		// observe pongs via its own control-stream hook (out of scope).
	case OpGoAway:
		c.fail(errs.New(errs.Transport, nil))
	case OpOpen:
		// Informational; the stream table already gains an entry on the
		// first data frame for the id (spec.md 4.3).
	default:
		c.fail(errs.New(errs.Protocol, ErrUnknownControlOp))
	}
}

// fail drains every stream with a terminal Disconnected delivery, in
// ascending StreamId order, then transitions to Closed (spec.md 4.3
// "Errors", scenario S6). Idempotent.
func (c *MultiplexedConnection) fail(err error) {
	if c.State() == StateClosed {
		return
	}
	c.setState(StateClosed)

	ids := make([]wire.StreamId, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	sortStreamIds(ids)

	for _, id := range ids {
		s := c.streams[id]
		s.deliverDisconnect()
		delete(c.streams, id)
	}

	for _, ps := range c.pipes {
		ps.wq.Discard()
	}
	c.alive = false

	gwlog.Debugf("transport: connection failed: %v", err)
}

func sortStreamIds(ids []wire.StreamId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
