package consts

import "time"

// Tunable Options
const (
	// READ_SCRATCH_SIZE is the size of ReadBuffer's fixed scratch region (spec.md 4.1)
	READ_SCRATCH_SIZE = 1440
	// READ_LOW_WATER_MARK is the trailing-bytes threshold below which the
	// ReadBuffer just shifts data instead of switching to large-chunk mode
	READ_LOW_WATER_MARK = 256
	// MAX_STREAM_ID_BYTES is the widest wire encoding of a StreamId (spec.md 3, 6)
	MAX_STREAM_ID_BYTES = 8
	// MAX_FRAME_PAYLOAD_LEN bounds a single frame's payload (spec.md 8,
	// invariant 6). Also engine/chunk's maximum allocatable Chunk capacity:
	// a peer declaring a larger payload is a protocol violation, checked by
	// ReadBuffer before any allocation is attempted.
	MAX_FRAME_PAYLOAD_LEN = 1 << 24

	// WRITE_QUEUE_HIGH_WATER_MARK is the default high-water mark of queued
	// bytes per pipe before Send returns WouldBlock (spec.md 4.2)
	WRITE_QUEUE_HIGH_WATER_MARK = 1024 * 1024

	// DEFAULT_PIPE_POOL_SIZE is the default number of pipes a
	// MultiplexedConnection maintains to one peer (spec.md 4.3)
	DEFAULT_PIPE_POOL_SIZE = 2

	// CONTROL_STREAM_ID is the reserved StreamId for connection control frames
	CONTROL_STREAM_ID = 0

	// EVENT_DISPATCH_DEFAULT_BUDGET is the default time budget of one
	// Process() call, used as engine/config's default. Dispatcher.Process
	// does not read it: a zero deadline drains the whole queue (spec.md 4.4)
	EVENT_DISPATCH_DEFAULT_BUDGET = 5 * time.Millisecond

	// CACHE_TIER_REQUEST_TIMEOUT is a per-tier timeout value for a forwarded
	// get_data request (spec.md 5). engine/cache does not read it, and
	// Layer.GetData applies no timeout to a forwarded request.
	CACHE_TIER_REQUEST_TIMEOUT = 30 * time.Second

	// CACHE_DISK_COMPRESS_THRESHOLD mirrors goworld's own
	// PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD, generalized from packets to
	// disk-tier blobs (SPEC_FULL.md 3)
	CACHE_DISK_COMPRESS_THRESHOLD = 4096
)

// Debug Options. No package reads these flags; setting one changes nothing.
const (
	// DEBUG_FRAMING names frame-level ReadBuffer/WriteQueue debug logging
	DEBUG_FRAMING = false
	// DEBUG_DISPATCH names EventDispatcher debug logging
	DEBUG_DISPATCH = false
	// DEBUG_CACHE names cache tier hit/miss/promotion debug logging
	DEBUG_CACHE = false
)
