package cache

import "github.com/pkg/errors"

var errShortFingerprint = errors.New("cache: fingerprint must decode to exactly 32 bytes")

// OpenEnd marks a Range's End as "through end-of-blob" (spec.md 3 "Range").
const OpenEnd int64 = -1

// Range is a half-open [Start, End) interval over blob offsets. End ==
// OpenEnd means unbounded.
type Range struct {
	Start int64
	End   int64 // OpenEnd for "through end-of-blob"
}

// Open reports whether r's end is unbounded.
func (r Range) Open() bool {
	return r.End == OpenEnd
}

// resolved returns r.End if bounded, else blobLen.
func (r Range) resolved(blobLen int64) int64 {
	if r.Open() {
		return blobLen
	}
	return r.End
}

func (r Range) empty() bool {
	return !r.Open() && r.End <= r.Start
}

// interval is a concrete, bounded [start, end) span, used internally once a
// blob's total length (or at least a lower bound) is known.
type interval struct {
	start, end int64
	data       []byte // len(data) == end-start
}

func (iv interval) touches(other interval) bool {
	return iv.start <= other.end && other.start <= iv.end
}

func (iv interval) merge(other interval) interval {
	start := iv.start
	if other.start < start {
		start = other.start
	}
	end := iv.end
	if other.end > end {
		end = other.end
	}
	buf := make([]byte, end-start)
	copy(buf[iv.start-start:], iv.data)
	copy(buf[other.start-start:], other.data)
	return interval{start: start, end: end, data: buf}
}

// SparseData is a set of non-overlapping, non-touching DenseData intervals
// covering known parts of a blob, sorted by start offset (spec.md 3
// "SparseData").
type SparseData struct {
	intervals []interval
}

// Clone returns a SparseData whose interval list is decoupled from sd's:
// later Insert calls on sd never retroactively change what a caller of
// Clone sees. Individual interval byte buffers are never mutated in place
// after creation, so the clone only needs to copy the slice header (spec.md
// 4.5 "Concurrent read/evict safety": a caller holding a snapshot must not
// see it change or vanish underneath it).
func (sd *SparseData) Clone() *SparseData {
	return &SparseData{intervals: append([]interval(nil), sd.intervals...)}
}

// NewSparseData builds an empty SparseData.
func NewSparseData() *SparseData {
	return &SparseData{}
}

// Insert merges [start, start+len(data)) into the sparse set, coalescing
// with any interval it touches or overlaps.
func (sd *SparseData) Insert(start int64, data []byte) {
	if len(data) == 0 {
		return
	}
	next := interval{start: start, end: start + int64(len(data)), data: data}
	sd.intervals = coalesceSorted(append(append([]interval(nil), sd.intervals...), next))
}

// coalesceSorted merges any adjacent/overlapping intervals left after a
// single Insert may have shifted ordering.
func coalesceSorted(ivs []interval) []interval {
	if len(ivs) < 2 {
		return ivs
	}
	// simple insertion sort by start; chains are always nearly sorted since
	// only one new interval was introduced.
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && ivs[j-1].start > ivs[j].start; j-- {
			ivs[j-1], ivs[j] = ivs[j], ivs[j-1]
		}
	}
	out := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if last.touches(iv) {
			*last = last.merge(iv)
		} else {
			out = append(out, iv)
		}
	}
	return out
}

// Covers reports whether the sparse set fully covers [r.Start, resolved end).
func (sd *SparseData) Covers(r Range, blobLen int64) bool {
	end := r.resolved(blobLen)
	if r.empty() {
		return true
	}
	for _, iv := range sd.intervals {
		if iv.start <= r.Start && iv.end >= end {
			return true
		}
	}
	return false
}

// Slice returns the bytes covering [r.Start, resolved end) if fully known,
// or ok=false if any part of the range is still missing.
func (sd *SparseData) Slice(r Range, blobLen int64) (data []byte, ok bool) {
	end := r.resolved(blobLen)
	for _, iv := range sd.intervals {
		if iv.start <= r.Start && iv.end >= end {
			return iv.data[r.Start-iv.start : end-iv.start], true
		}
	}
	return nil, false
}

// Bytes returns the union of all known bytes, in [start,end) order, for
// tests and for populate_parent_caches (spec.md 4.5 "Population").
func (sd *SparseData) Bytes() []struct {
	Start int64
	Data  []byte
} {
	out := make([]struct {
		Start int64
		Data  []byte
	}, len(sd.intervals))
	for i, iv := range sd.intervals {
		out[i] = struct {
			Start int64
			Data  []byte
		}{iv.start, iv.data}
	}
	return out
}

// Len returns the total number of known bytes across all intervals.
func (sd *SparseData) Len() int64 {
	var n int64
	for _, iv := range sd.intervals {
		n += iv.end - iv.start
	}
	return n
}

// Truncate returns a new SparseData holding only the lowest-offset
// maxBytes worth of data, cutting the last retained interval short if
// needed. Used by a tier whose budget cannot hold an entire population in
// one entry (spec.md 8 S4: "Mem contains a subrange up to its budget").
func (sd *SparseData) Truncate(maxBytes int64) *SparseData {
	out := NewSparseData()
	var kept int64
	for _, iv := range sd.intervals {
		if kept >= maxBytes {
			break
		}
		room := maxBytes - kept
		n := iv.end - iv.start
		if n > room {
			n = room
		}
		out.Insert(iv.start, iv.data[:n])
		kept += n
	}
	return out
}
