// Package chunk implements the Chunk type of spec.md 3: an owned,
// contiguous byte sequence with a known length, immutable once sealed and
// reference-counted so cache tiers and stream receivers can share read
// access to the same bytes without copying.
//
// Grounded on goworld's engine/netutil.Packet: a pool of size-classed
// []byte buffers (sync.Pool per predefined capacity), a small inline
// buffer for the common case, and an atomic refcount released back to the
// pool at zero. worldlink drops Packet's read-cursor and wire-encoding
// helpers (those move to engine/wire, which operates on a sealed Chunk's
// bytes) and keeps only the buffer-ownership lifecycle.
package chunk

import (
	"sync"
	"sync/atomic"

	"github.com/xiaonanln/worldlink/engine/consts"
)

const (
	minCap      = 128
	capGrowBits = uint(2)
	// maxCap mirrors consts.MAX_FRAME_PAYLOAD_LEN: a length above it is a
	// protocol error, not something this package can decide to allocate
	// anyway. Callers parsing untrusted lengths (engine/transport) must
	// reject before calling New; New itself only guards against internal
	// misuse, since by the time a bad length reaches here it is no longer a
	// peer's mistake but the caller's.
	maxCap = consts.MAX_FRAME_PAYLOAD_LEN
)

var (
	sizeClasses []uint32
	pools       = map[uint32]*sync.Pool{}
)

func init() {
	c := uint32(minCap)
	for c < maxCap {
		sizeClasses = append(sizeClasses, c)
		c <<= capGrowBits
	}
	sizeClasses = append(sizeClasses, maxCap)

	for _, c := range sizeClasses {
		c := c
		pools[c] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, c)
			},
		}
	}
}

func classFor(n uint32) uint32 {
	for _, c := range sizeClasses {
		if c >= n {
			return c
		}
	}
	return maxCap
}

// Chunk is an owned, reference-counted byte buffer. The zero value is not
// usable; construct with New or NewFromBytes.
type Chunk struct {
	buf      []byte // backing storage, len(buf) may exceed the logical length
	length   uint32 // logical length actually written
	refcount int32
	pooled   bool // whether buf came from a size-classed pool (vs inline/foreign)
	sealed   bool
}

// New allocates a Chunk with the given logical length, its bytes zeroed.
// Refcount starts at 1; the caller owns the returned handle. Panics if
// length exceeds maxCap: callers that parse lengths from untrusted input
// (a peer's declared frame payload length) must reject oversized values
// themselves and never reach this call, since here it can only mean an
// internal bug rather than a protocol violation.
func New(length uint32) *Chunk {
	if length > maxCap {
		panic("chunk: length exceeds maxCap")
	}
	class := classFor(length)
	buf := pools[class].Get().([]byte)
	for i := range buf {
		buf[i] = 0
	}
	return &Chunk{buf: buf, length: length, refcount: 1, pooled: true}
}

// NewFromBytes copies data into a freshly pooled Chunk and seals it.
func NewFromBytes(data []byte) *Chunk {
	c := New(uint32(len(data)))
	copy(c.buf, data)
	c.Seal()
	return c
}

// Bytes returns the logical (written) portion of the chunk. The slice must
// not be retained past Release, nor mutated once the chunk is Sealed.
func (c *Chunk) Bytes() []byte {
	return c.buf[:c.length]
}

// Len returns the logical length of the chunk.
func (c *Chunk) Len() uint32 {
	return c.length
}

// Cap returns the backing buffer's total capacity.
func (c *Chunk) Cap() uint32 {
	return uint32(len(c.buf))
}

// Unwritten returns the writable tail of the backing buffer, from the
// logical length to capacity; Advance then marks bytes copied into it as
// written.
func (c *Chunk) Unwritten() []byte {
	return c.buf[c.length:]
}

// Advance marks n more bytes as written, growing the logical length.
// Panics if it would exceed capacity; that indicates an internal bug in
// the caller's framing arithmetic.
func (c *Chunk) Advance(n uint32) {
	if c.sealed {
		panic("chunk: Advance on sealed chunk")
	}
	if c.length+n > uint32(len(c.buf)) {
		panic("chunk: Advance overflows capacity")
	}
	c.length += n
}

// Seal marks the chunk immutable. Further Advance calls panic.
func (c *Chunk) Seal() {
	c.sealed = true
}

// Sealed reports whether the chunk has been sealed.
func (c *Chunk) Sealed() bool {
	return c.sealed
}

// Retain increments the reference count, returning c for chaining. Call
// before handing the same Chunk to a second owner (e.g. a cache tier
// promoting bytes to a parent while also answering the current caller).
func (c *Chunk) Retain() *Chunk {
	atomic.AddInt32(&c.refcount, 1)
	return c
}

// Release decrements the reference count, returning the backing buffer to
// its size-class pool once it reaches zero. Calling Release without a
// matching Retain/New is a use-after-free bug in the caller.
func (c *Chunk) Release() {
	n := atomic.AddInt32(&c.refcount, -1)
	if n < 0 {
		panic("chunk: released too many times")
	}
	if n == 0 && c.pooled {
		class := classFor(uint32(len(c.buf)))
		pools[class].Put(c.buf) //nolint:staticcheck // buffer contents are opaque after release
		c.buf = nil
	}
}

// RefCount returns the current reference count, for tests and diagnostics.
func (c *Chunk) RefCount() int32 {
	return atomic.LoadInt32(&c.refcount)
}

// Pool is a named handle to the shared size-classed buffer pools, exposed
// so callers (e.g. cache tiers accounting for spec.md 8 invariant 4's
// budget bound) can query the size class a length would land in without
// allocating.
type Pool struct{}

// ClassFor returns the pooled buffer size a chunk of length n would use.
func (Pool) ClassFor(n uint32) uint32 {
	return classFor(n)
}
