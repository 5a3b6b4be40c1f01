// Package cache implements the layered content cache of spec.md 4.5: a
// doubly linked chain of CacheLayer tiers (memory, disk, network) serving
// ranged reads over content-addressed blobs, with pluggable eviction
// policies. Grounded on original_source's CacheLayer.hpp/DiskCache.hpp
// parent/next linkage and populate_parent_caches recursion.
package cache

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint is a content digest identifying a blob; equality implies
// byte-identical content (spec.md 3 "Fingerprint"). Uses blake3 rather than
// goworld's crc/md5 helpers, since none of those give the wide,
// collision-resistant digest a cross-tier cache key needs.
type Fingerprint [32]byte

// ComputeFingerprint hashes data with blake3 to produce its Fingerprint.
func ComputeFingerprint(data []byte) Fingerprint {
	var fp Fingerprint
	sum := blake3.Sum256(data)
	copy(fp[:], sum[:])
	return fp
}

// String renders the Fingerprint as lowercase hex (spec.md 6 "Cache key
// format").
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// Less gives Fingerprint a total order by underlying digest bytes (spec.md
// 3 "Fingerprint: Total ordering by the underlying digest").
func (fp Fingerprint) Less(other Fingerprint) bool {
	for i := range fp {
		if fp[i] != other[i] {
			return fp[i] < other[i]
		}
	}
	return false
}

// ParseFingerprint decodes a lowercase-hex Fingerprint, as found in a cache
// URI (spec.md 6 `<scheme>://<authority>/<fingerprint>[?<range>]`).
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(b) != len(fp) {
		return fp, errShortFingerprint
	}
	copy(fp[:], b)
	return fp, nil
}
