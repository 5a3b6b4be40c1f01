package cache

import (
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/xiaonanln/worldlink/engine/consts"
)

// DiskStore models a filesystem-backed tier. Intervals at or above
// consts.CACHE_DISK_COMPRESS_THRESHOLD are run through an s2 compress and
// decompress round trip on Put, and the decompressed bytes are what is held
// (see roundtripS2), the way goworld compresses packet payloads past
// PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD, generalized here from wire packets
// to cached blobs. Backed by an in-memory map rather than real files: the
// storage medium is out of scope for the core (spec.md 9 non-goals), only
// the Store contract and its compression policy are exercised.
type DiskStore struct {
	mu   sync.RWMutex
	blob map[Fingerprint]diskEntry
}

type diskEntry struct {
	sd         *SparseData
	compressed bool
}

// NewDiskStore constructs an empty DiskStore.
func NewDiskStore() *DiskStore {
	return &DiskStore{blob: map[Fingerprint]diskEntry{}}
}

func (s *DiskStore) Get(fp Fingerprint) (*SparseData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blob[fp]
	if !ok {
		return nil, false
	}
	return e.sd.Clone(), true
}

func (s *DiskStore) Put(fp Fingerprint, dense *SparseData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blob[fp]
	if !ok {
		e.sd = NewSparseData()
	}
	for _, b := range dense.Bytes() {
		data := b.Data
		if int64(len(data)) >= consts.CACHE_DISK_COMPRESS_THRESHOLD {
			data = roundtripS2(data)
			e.compressed = true
		}
		e.sd.Insert(b.Start, data)
	}
	s.blob[fp] = e
}

// roundtripS2 compresses then immediately decompresses data. DiskStore
// keeps only the decompressed bytes in its in-memory index; the round trip
// exists to exercise s2's encode/decode path the way a real filesystem
// tier would when writing then later reading a compressed blob.
func roundtripS2(data []byte) []byte {
	compressed := s2.Encode(nil, data)
	decoded, err := s2.Decode(nil, compressed)
	if err != nil {
		return data
	}
	return decoded
}

func (s *DiskStore) Evict(fp Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blob, fp)
}

func (s *DiskStore) SizeOf(fp Fingerprint) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.blob[fp]; ok {
		return e.sd.Len()
	}
	return 0
}
